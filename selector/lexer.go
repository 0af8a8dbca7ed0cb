package selector

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes the selector/condition surface syntax. The token set is
// closed: anything it cannot tokenize is a parse error, so no input ever
// reaches evaluation without passing through this fixed grammar.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Number", Pattern: `-?[0-9]+(?:\.[0-9]+)?`},
	{Name: "Op", Pattern: `==|!=|>|<`},
	{Name: "Punct", Pattern: `[\[\]().#$:]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

var (
	conditionParser = participle.MustBuild[Condition](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(4),
	)

	selectorParser = participle.MustBuild[Selector](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(4),
	)
)

// ParseCondition compiles a condition expression into its AST. This happens
// exactly once, at load time; only the AST is kept and evaluated.
func ParseCondition(src string) (*Condition, error) {
	cond, err := conditionParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	cond.Source = src
	return cond, nil
}

// ParseSelector compiles a bare selector expression (no comparison operators).
func ParseSelector(src string) (*Selector, error) {
	sel, err := selectorParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	sel.Source = src
	return sel, nil
}

// MustParseCondition is ParseCondition for static expressions in tests and
// fixtures. Panics on error.
func MustParseCondition(src string) *Condition {
	cond, err := ParseCondition(src)
	if err != nil {
		panic(err)
	}
	return cond
}

// MustParseSelector is ParseSelector for static expressions. Panics on error.
func MustParseSelector(src string) *Selector {
	sel, err := ParseSelector(src)
	if err != nil {
		panic(err)
	}
	return sel
}

// Package selector implements the fixed selector/condition grammar shared by
// affordance requirements, triggers, computed-property formulas, and win
// conditions. Expressions are compiled once into the typed AST defined here;
// the source string is kept only for error reporting. There is no
// general-purpose scripting: the grammar below is the entire language.
//
//	selector  := target step* filter?
//	target    := #id | type:T | name:"..." | this | actor | $param
//	step      := "." relation ( "(" selector ")" )? filter?
//	relation  := located_in | contains | linked_to
//	filter    := "[" prop "." key op literal "]"
//	condition := or-chain of and-chains of (not* comparison)
//	operand   := literal | selector[.prop.key] | count(...) | any(...) | all(...)
package selector

// Condition is a disjunction of conjunctions (lowest precedence first).
type Condition struct {
	Or []*AndCond `parser:"@@ ( 'or' @@ )*"`

	// Source is the surface text this AST was compiled from. Set by
	// ParseCondition, used only in error and requirement reporting.
	Source string
}

// AndCond is a conjunction of comparisons.
type AndCond struct {
	And []*Comparison `parser:"@@ ( 'and' @@ )*"`
}

// Comparison is an optionally negated operand, optionally compared to a
// second operand. A bare operand must evaluate to a boolean.
type Comparison struct {
	Nots  []string `parser:"@'not'*"`
	Left  *Operand `parser:"@@"`
	Op    string   `parser:"( @('==' | '!=' | '>' | '<' | 'contains')"`
	Right *Operand `parser:"@@ )?"`
}

// Operand is a literal, an aggregate, a selector (optionally narrowed to one
// property), or a parenthesized sub-condition.
type Operand struct {
	Number *float64   `parser:"@Number"`
	Str    *string    `parser:"| @String"`
	Bool   *Boolean   `parser:"| @('true' | 'false')"`
	Agg    *Aggregate `parser:"| @@"`
	Query  *Query     `parser:"| @@"`
	Sub    *Condition `parser:"| '(' @@ ')'"`
}

// Boolean captures the matched token text, so `false` parses to false.
// A plain bool field would be set to true for either token.
type Boolean bool

// Capture implements participle's capture interface.
func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// Aggregate reduces an entity set to a scalar: count(sel) is its cardinality,
// any(sel) is non-emptiness, all(sel) requires a trailing filter and holds
// when every member of the unfiltered set passes it.
type Aggregate struct {
	Fn  string    `parser:"@('count' | 'any' | 'all')"`
	Sel *Selector `parser:"'(' @@ ')'"`
}

// Query is a selector optionally narrowed to a single property value, e.g.
// this.prop.is_lit or $door.prop.lock_id. With a property, the selector must
// resolve to exactly one entity.
type Query struct {
	Sel  *Selector `parser:"@@"`
	Prop *string   `parser:"( '.' 'prop' '.' @Ident )?"`
}

// Selector resolves to an entity set.
type Selector struct {
	Target *Target `parser:"@@"`
	Steps  []*Step `parser:"@@*"`
	Filter *Filter `parser:"@@?"`

	// Source is set when the selector was parsed standalone.
	Source string
}

// Target is the root entity set of a selector.
type Target struct {
	ID    *string `parser:"'#' @Ident"`
	Type  *string `parser:"| 'type' ':' @Ident"`
	Name  *string `parser:"| 'name' ':' @String"`
	This  bool    `parser:"| @'this'"`
	Actor bool    `parser:"| @'actor'"`
	Param *string `parser:"| '$' @Ident"`
}

// Step walks one relation from every entity in the current set. An inner
// selector argument intersects the result (room.contains(type:object)).
type Step struct {
	Relation string    `parser:"'.' @('located_in' | 'contains' | 'linked_to')"`
	Arg      *Selector `parser:"( '(' @@ ')' )?"`
	Filter   *Filter   `parser:"@@?"`
}

// Filter keeps entities whose property compares true against a literal.
type Filter struct {
	Key string   `parser:"'[' 'prop' '.' @Ident"`
	Op  string   `parser:"@('==' | '!=' | '>' | '<' | 'contains')"`
	Lit *Literal `parser:"@@ ']'"`
}

// Literal is a constant filter operand.
type Literal struct {
	Number *float64 `parser:"@Number"`
	Str    *string  `parser:"| @String"`
	Bool   *Boolean `parser:"| @('true' | 'false')"`
}

// Value returns the literal as a runtime value.
func (l *Literal) Value() any {
	switch {
	case l.Number != nil:
		return *l.Number
	case l.Str != nil:
		return *l.Str
	case l.Bool != nil:
		return bool(*l.Bool)
	}
	return nil
}

// IsSingleton reports whether the selector's root can only ever resolve to a
// single entity (id, this, actor, or parameter reference) and takes no steps.
func (s *Selector) IsSingleton() bool {
	if len(s.Steps) > 0 || s.Filter != nil {
		return false
	}
	t := s.Target
	return t.ID != nil || t.This || t.Actor || t.Param != nil
}

// IsThis reports whether the selector is the bare `this` reference.
func (s *Selector) IsThis() bool {
	return s.Target.This && len(s.Steps) == 0 && s.Filter == nil
}

package selector

import (
	"fmt"
	"sort"
	"strings"
)

// Env supplies the world view a condition evaluates against. Implementations
// must be read-only: evaluation is pure and never mutates state.
type Env interface {
	// Resolve returns the sorted entity ids a selector matches. Unbound
	// `this`/`actor`/`$param` references return an *UnresolvedError.
	Resolve(sel *Selector) ([]string, error)

	// Prop returns an entity's effective property value.
	Prop(entity, key string) (any, bool)
}

// Kind classifies a runtime value.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindEntities
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	default:
		return "entity set"
	}
}

// Value is the result of evaluating an operand.
type Value struct {
	Kind     Kind
	Num      float64
	Str      string
	Bool     bool
	Entities []string
}

// Eval evaluates a condition to true or false. Or-chains and and-chains
// short-circuit left to right.
func Eval(c *Condition, env Env) (bool, error) {
	for _, and := range c.Or {
		ok := true
		for _, cmp := range and.And {
			v, err := evalComparison(cmp, env)
			if err != nil {
				return false, err
			}
			if !v {
				ok = false
				break
			}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// EvalScalar evaluates a condition as a value-producing formula: a bare
// un-negated operand yields its own typed value, anything else the boolean
// result. Computed-property formulas go through here.
func EvalScalar(c *Condition, env Env) (any, error) {
	if len(c.Or) == 1 && len(c.Or[0].And) == 1 {
		cmp := c.Or[0].And[0]
		if cmp.Op == "" && len(cmp.Nots) == 0 {
			v, err := EvalOperand(cmp.Left, env)
			if err != nil {
				return nil, err
			}
			switch v.Kind {
			case KindNumber:
				return v.Num, nil
			case KindString:
				return v.Str, nil
			case KindBool:
				return v.Bool, nil
			default:
				return nil, &TypeError{Op: "formula", Detail: "entity sets are not property values"}
			}
		}
	}
	return Eval(c, env)
}

func evalComparison(cmp *Comparison, env Env) (bool, error) {
	left, err := EvalOperand(cmp.Left, env)
	if err != nil {
		return false, err
	}

	var result bool
	if cmp.Op == "" {
		if left.Kind != KindBool {
			return false, &TypeError{Op: "condition", Detail: fmt.Sprintf("bare operand is %s, want boolean", left.Kind)}
		}
		result = left.Bool
	} else {
		right, err := EvalOperand(cmp.Right, env)
		if err != nil {
			return false, err
		}
		result, err = compare(cmp.Op, left, right)
		if err != nil {
			return false, err
		}
	}

	if len(cmp.Nots)%2 == 1 {
		result = !result
	}
	return result, nil
}

// EvalOperand evaluates a single operand to a Value.
func EvalOperand(op *Operand, env Env) (Value, error) {
	switch {
	case op.Number != nil:
		return Value{Kind: KindNumber, Num: *op.Number}, nil

	case op.Str != nil:
		return Value{Kind: KindString, Str: *op.Str}, nil

	case op.Bool != nil:
		return Value{Kind: KindBool, Bool: bool(*op.Bool)}, nil

	case op.Agg != nil:
		return evalAggregate(op.Agg, env)

	case op.Query != nil:
		return evalQuery(op.Query, env)

	case op.Sub != nil:
		b, err := Eval(op.Sub, env)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: b}, nil
	}
	return Value{}, fmt.Errorf("empty operand")
}

func evalAggregate(agg *Aggregate, env Env) (Value, error) {
	switch agg.Fn {
	case "count":
		ids, err := env.Resolve(agg.Sel)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindNumber, Num: float64(len(ids))}, nil

	case "any":
		ids, err := env.Resolve(agg.Sel)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindBool, Bool: len(ids) > 0}, nil

	case "all":
		base, filter := stripTrailingFilter(agg.Sel)
		if filter == nil {
			return Value{}, &TypeError{Op: "all", Detail: "all(...) requires a trailing [prop...] filter"}
		}
		ids, err := env.Resolve(base)
		if err != nil {
			return Value{}, err
		}
		// Vacuously true over the empty set.
		for _, id := range ids {
			ok, err := FilterMatch(env, id, filter)
			if err != nil {
				return Value{}, err
			}
			if !ok {
				return Value{Kind: KindBool, Bool: false}, nil
			}
		}
		return Value{Kind: KindBool, Bool: true}, nil
	}
	return Value{}, fmt.Errorf("unknown aggregate %q", agg.Fn)
}

func evalQuery(q *Query, env Env) (Value, error) {
	ids, err := env.Resolve(q.Sel)
	if err != nil {
		return Value{}, err
	}
	if q.Prop == nil {
		return Value{Kind: KindEntities, Entities: ids}, nil
	}
	if len(ids) != 1 {
		return Value{}, &UnresolvedError{
			Expr:   q.Sel.String(),
			Reason: fmt.Sprintf("property path needs exactly one entity, got %d", len(ids)),
		}
	}
	v, ok := env.Prop(ids[0], *q.Prop)
	if !ok {
		return Value{}, &UnresolvedError{
			Expr:   q.Sel.String() + ".prop." + *q.Prop,
			Reason: fmt.Sprintf("entity %q has no property %q", ids[0], *q.Prop),
		}
	}
	return ValueOf(v)
}

// ValueOf converts a raw property value into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case float64:
		return Value{Kind: KindNumber, Num: x}, nil
	case int:
		return Value{Kind: KindNumber, Num: float64(x)}, nil
	case int64:
		return Value{Kind: KindNumber, Num: float64(x)}, nil
	case string:
		return Value{Kind: KindString, Str: x}, nil
	case bool:
		return Value{Kind: KindBool, Bool: x}, nil
	}
	return Value{}, &TypeError{Op: "value", Detail: fmt.Sprintf("unsupported property value %T", v)}
}

// FilterMatch reports whether an entity passes a [prop.key OP literal] filter.
// A missing property never matches.
func FilterMatch(env Env, entity string, f *Filter) (bool, error) {
	raw, ok := env.Prop(entity, f.Key)
	if !ok {
		return false, nil
	}
	left, err := ValueOf(raw)
	if err != nil {
		return false, err
	}
	right, err := ValueOf(f.Lit.Value())
	if err != nil {
		return false, err
	}
	return compare(f.Op, left, right)
}

func compare(op string, l, r Value) (bool, error) {
	switch op {
	case "==", "!=":
		eq, err := equals(l, r)
		if err != nil {
			return false, err
		}
		if op == "!=" {
			eq = !eq
		}
		return eq, nil

	case ">", "<":
		if l.Kind != KindNumber || r.Kind != KindNumber {
			return false, &TypeError{Op: op, Detail: fmt.Sprintf("want numbers, got %s and %s", l.Kind, r.Kind)}
		}
		if op == ">" {
			return l.Num > r.Num, nil
		}
		return l.Num < r.Num, nil

	case "contains":
		if l.Kind != KindString || r.Kind != KindString {
			return false, &TypeError{Op: op, Detail: fmt.Sprintf("want strings, got %s and %s", l.Kind, r.Kind)}
		}
		return strings.Contains(l.Str, r.Str), nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func equals(l, r Value) (bool, error) {
	// Entity sets compare as sets; a singleton set compares to a string id.
	if l.Kind == KindEntities && r.Kind == KindEntities {
		return sameSet(l.Entities, r.Entities), nil
	}
	if l.Kind == KindEntities && r.Kind == KindString {
		return len(l.Entities) == 1 && l.Entities[0] == r.Str, nil
	}
	if l.Kind == KindString && r.Kind == KindEntities {
		return len(r.Entities) == 1 && r.Entities[0] == l.Str, nil
	}
	if l.Kind != r.Kind {
		return false, &TypeError{Op: "==", Detail: fmt.Sprintf("cannot compare %s with %s", l.Kind, r.Kind)}
	}
	switch l.Kind {
	case KindNumber:
		return l.Num == r.Num, nil
	case KindString:
		return l.Str == r.Str, nil
	default:
		return l.Bool == r.Bool, nil
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// stripTrailingFilter returns a copy of sel without its final filter, plus
// that filter. The final filter is the selector-level one if present,
// otherwise the last step's.
func stripTrailingFilter(sel *Selector) (*Selector, *Filter) {
	if sel.Filter != nil {
		base := *sel
		base.Filter = nil
		return &base, sel.Filter
	}
	if n := len(sel.Steps); n > 0 && sel.Steps[n-1].Filter != nil {
		base := *sel
		base.Steps = append([]*Step(nil), sel.Steps...)
		last := *sel.Steps[n-1]
		filter := last.Filter
		last.Filter = nil
		base.Steps[n-1] = &last
		return &base, filter
	}
	return sel, nil
}

package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// String reconstructs the surface syntax of a selector, for error messages
// and event payloads. Round-trips modulo whitespace.
func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(s.Target.String())
	for _, st := range s.Steps {
		b.WriteByte('.')
		b.WriteString(st.Relation)
		if st.Arg != nil {
			fmt.Fprintf(&b, "(%s)", st.Arg)
		}
		if st.Filter != nil {
			b.WriteString(st.Filter.String())
		}
	}
	if s.Filter != nil {
		b.WriteString(s.Filter.String())
	}
	return b.String()
}

func (t *Target) String() string {
	switch {
	case t.ID != nil:
		return "#" + *t.ID
	case t.Type != nil:
		return "type:" + *t.Type
	case t.Name != nil:
		return "name:" + strconv.Quote(*t.Name)
	case t.This:
		return "this"
	case t.Actor:
		return "actor"
	case t.Param != nil:
		return "$" + *t.Param
	}
	return "?"
}

func (f *Filter) String() string {
	return fmt.Sprintf("[prop.%s %s %s]", f.Key, f.Op, f.Lit)
}

func (l *Literal) String() string {
	switch {
	case l.Number != nil:
		return strconv.FormatFloat(*l.Number, 'f', -1, 64)
	case l.Str != nil:
		return strconv.Quote(*l.Str)
	case l.Bool != nil:
		return strconv.FormatBool(bool(*l.Bool))
	}
	return "?"
}

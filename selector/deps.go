package selector

// Static analysis helpers used by load-time validation: computed-property
// dependency extraction and trigger/effect oscillation checks.

// PropKeys returns every property key a condition reads, anywhere in the
// tree (property paths, filters, aggregates). Order follows the source.
func PropKeys(c *Condition) []string {
	var keys []string
	walkCondition(c, func(q *Query) {
		if q.Prop != nil {
			keys = append(keys, *q.Prop)
		}
		keys = append(keys, selectorFilterKeys(q.Sel)...)
	}, func(agg *Aggregate) {
		keys = append(keys, selectorFilterKeys(agg.Sel)...)
	})
	return keys
}

// ThisPropOnly reports whether a condition reads state exclusively through
// bare `this.prop.*` paths. Computed-property formulas must satisfy this so
// their dependency set is statically derivable and cycle-checkable at load.
func ThisPropOnly(c *Condition) bool {
	ok := true
	walkCondition(c, func(q *Query) {
		if !q.Sel.IsThis() || q.Prop == nil {
			ok = false
		}
	}, func(agg *Aggregate) {
		ok = false
	})
	return ok
}

// ThisPropKeys returns the dependency set of a this-only formula.
func ThisPropKeys(c *Condition) []string {
	seen := map[string]bool{}
	var keys []string
	walkCondition(c, func(q *Query) {
		if q.Sel.IsThis() && q.Prop != nil && !seen[*q.Prop] {
			seen[*q.Prop] = true
			keys = append(keys, *q.Prop)
		}
	}, nil)
	return keys
}

func selectorFilterKeys(sel *Selector) []string {
	var keys []string
	for _, st := range sel.Steps {
		if st.Arg != nil {
			keys = append(keys, selectorFilterKeys(st.Arg)...)
		}
		if st.Filter != nil {
			keys = append(keys, st.Filter.Key)
		}
	}
	if sel.Filter != nil {
		keys = append(keys, sel.Filter.Key)
	}
	return keys
}

func walkCondition(c *Condition, onQuery func(*Query), onAgg func(*Aggregate)) {
	for _, and := range c.Or {
		for _, cmp := range and.And {
			walkOperand(cmp.Left, onQuery, onAgg)
			if cmp.Right != nil {
				walkOperand(cmp.Right, onQuery, onAgg)
			}
		}
	}
}

func walkOperand(op *Operand, onQuery func(*Query), onAgg func(*Aggregate)) {
	switch {
	case op == nil:
	case op.Query != nil:
		if onQuery != nil {
			onQuery(op.Query)
		}
	case op.Agg != nil:
		if onAgg != nil {
			onAgg(op.Agg)
		}
		// Aggregate selectors may carry filters; report them as queries too.
		if onQuery != nil {
			onQuery(&Query{Sel: op.Agg.Sel})
		}
	case op.Sub != nil:
		walkCondition(op.Sub, onQuery, onAgg)
	}
}

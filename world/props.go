package world

import (
	"fmt"

	"github.com/nathoo/worldcore/types"
)

// Property lookup layers, most specific first: status overlays, then
// instance writes/overrides, then computed formulas, then definition
// defaults. Writes are schema-checked; computed entries are read-only.

// GetProp returns an entity's effective property value.
func (w *World) GetProp(id, key string) (any, bool) {
	inst, ok := w.instances[id]
	if !ok {
		return nil, false
	}

	// Status overlays, most recently applied first.
	overlays := w.statuses[id]
	for i := len(overlays) - 1; i >= 0; i-- {
		if v, ok := overlays[i].Overlay[key]; ok {
			return v, true
		}
	}

	if v, ok := inst.props[key]; ok {
		return v, true
	}

	if _, ok := inst.Def.Computed[key]; ok {
		v, err := w.ResolveComputed(id, key)
		if err != nil {
			return nil, false
		}
		return v, true
	}

	if schema, ok := inst.Def.Props[key]; ok && schema.Default != nil {
		return schema.Default, true
	}
	return nil, false
}

// SetProp writes a property value, failing ErrReadOnlyProperty for computed
// keys, ErrUnknownProperty for keys outside the schema, and ErrTypeMismatch
// when the value's runtime type disagrees with the declared type.
func (w *World) SetProp(id, key string, value any) error {
	inst, ok := w.instances[id]
	if !ok {
		return entityErr(id)
	}
	if _, computed := inst.Def.Computed[key]; computed {
		return fmt.Errorf("%w: %q is computed", ErrReadOnlyProperty, key)
	}
	schema, ok := inst.Def.Props[key]
	if !ok {
		return fmt.Errorf("%w: %q on %q", ErrUnknownProperty, key, inst.Def.ID)
	}
	v, err := coerce(schema, value)
	if err != nil {
		return fmt.Errorf("property %q on %q: %w", key, id, err)
	}

	old, existed := inst.props[key]
	w.record(func() {
		if existed {
			inst.props[key] = old
		} else {
			delete(inst.props, key)
		}
		w.bump(id, key)
	})
	inst.props[key] = v
	w.bump(id, key)
	return nil
}

// Schema returns the declared schema for a property key.
func (w *World) Schema(id, key string) (types.PropSchema, bool) {
	inst, ok := w.instances[id]
	if !ok {
		return types.PropSchema{}, false
	}
	schema, ok := inst.Def.Props[key]
	return schema, ok
}

// bump advances the write stamp for one (entity, key) slot. Computed caches
// compare dependency stamps against these to decide staleness.
func (w *World) bump(id, key string) {
	w.clock++
	m, ok := w.stamps[id]
	if !ok {
		m = map[string]uint64{}
		w.stamps[id] = m
	}
	m[key] = w.clock
}

func (w *World) stamp(id, key string) uint64 {
	return w.stamps[id][key]
}

// coerce checks a raw value against a schema and normalizes numbers to
// float64 so equality behaves uniformly regardless of config source.
func coerce(schema types.PropSchema, value any) (any, error) {
	switch schema.Type {
	case types.PropNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("%w: want number, got %T", ErrTypeMismatch, value)

	case types.PropBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: want boolean, got %T", ErrTypeMismatch, value)

	case types.PropString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, value)

	case types.PropEnum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want enum string, got %T", ErrTypeMismatch, value)
		}
		for _, member := range schema.Values {
			if s == member {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %q not in enum %v", ErrTypeMismatch, s, schema.Values)
	}
	return nil, fmt.Errorf("%w: unknown schema type %q", ErrTypeMismatch, schema.Type)
}

// Normalize converts raw config numbers to the kernel's float64 form without
// schema knowledge. Used for status overlays and event payloads.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return v
}

package vectorstore

// matchesFilter implements spec §4.5 "Filter translation" for the
// in-memory backend (and is reused as the reference semantics the Qdrant
// adapter's server-side filter must agree with): equality on scope ids and
// memory_type; numeric range filters via RangeFilter values; list filters
// (entities/topics) require every requested value to be present (AND of
// keyword matches); custom_* values match by equality, or — when the
// filter value is a slice — by membership (OR of text matches).
func matchesFilter(payload map[string]any, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		if rf, ok := want.(RangeFilter); ok {
			if !matchesRange(payload[k], rf) {
				return false
			}
			continue
		}
		got, present := payload[k]
		if !present {
			return false
		}
		switch wantList := want.(type) {
		case []string:
			if !matchesListAND(got, wantList) {
				return false
			}
		case []any:
			if !matchesOR(got, wantList) {
				return false
			}
		default:
			if !equalScalar(got, want) {
				return false
			}
		}
	}
	return true
}

// RangeFilter expresses a numeric range filter for created_at_ts,
// updated_at_ts, or importance_score (spec §4.5).
type RangeFilter struct {
	Min, Max *float64
}

func matchesRange(got any, rf RangeFilter) bool {
	v, ok := toFloat(got)
	if !ok {
		return false
	}
	if rf.Min != nil && v < *rf.Min {
		return false
	}
	if rf.Max != nil && v > *rf.Max {
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// matchesListAND requires every value in want to be present in the stored
// list-valued field got (entities/topics AND semantics, spec §4.5).
func matchesListAND(got any, want []string) bool {
	gotList := decodeStringList(got)
	set := make(map[string]struct{}, len(gotList))
	for _, g := range gotList {
		set[g] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// matchesOR treats want as a disjunction: got matches if it equals any
// element of want (custom_* array filters, spec §4.5).
func matchesOR(got any, want []any) bool {
	for _, w := range want {
		if equalScalar(got, w) {
			return true
		}
	}
	return false
}

func equalScalar(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

package filterexpr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// OrderKey is one "field [asc|desc]" segment.
type OrderKey struct {
	Field string
	Desc  bool
}

// OrderSchema describes ordering defaults and whitelisted keys.
type OrderSchema struct {
	Default  []OrderKey
	Fallback OrderKey
	Fields   []string
}

// ParseOrderBy validates raw against schema. The fallback key is appended
// when absent so ordering is always total.
func ParseOrderBy(raw string, schema OrderSchema) ([]OrderKey, error) {
	if schema.Fallback.Field == "" {
		return nil, errors.New("order schema fallback key required")
	}
	allowed := make(map[string]struct{}, len(schema.Fields))
	for _, f := range schema.Fields {
		allowed[f] = struct{}{}
	}
	if _, ok := allowed[schema.Fallback.Field]; !ok {
		return nil, fmt.Errorf("fallback order key %q missing from schema fields", schema.Fallback.Field)
	}

	var keys []OrderKey
	raw = strings.TrimSpace(raw)
	if raw == "" {
		keys = append(keys, schema.Default...)
	}

	seen := make(map[string]struct{})
	for _, seg := range strings.Split(raw, ",") {
		parts := strings.Fields(seg)
		if len(parts) == 0 {
			continue
		}
		key := OrderKey{Field: parts[0]}
		if _, ok := allowed[key.Field]; !ok {
			return nil, fmt.Errorf("field %q cannot be used for ordering", key.Field)
		}
		switch len(parts) {
		case 1:
		case 2:
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				key.Desc = true
			default:
				return nil, fmt.Errorf("invalid direction %q for field %q", parts[1], key.Field)
			}
		default:
			return nil, fmt.Errorf("invalid order segment %q", strings.TrimSpace(seg))
		}
		if _, dup := seen[key.Field]; dup {
			return nil, fmt.Errorf("duplicate order key %q", key.Field)
		}
		seen[key.Field] = struct{}{}
		keys = append(keys, key)
	}

	hasFallback := false
	for _, k := range keys {
		if k.Field == schema.Fallback.Field {
			hasFallback = true
			break
		}
	}
	if !hasFallback {
		keys = append(keys, schema.Fallback)
	}
	return keys, nil
}

// Comparator returns a negative, zero or positive value like strings.Compare.
type Comparator[T any] func(a, b T) int

// SortBy stably sorts items by keys using the per-field comparators.
// Unknown fields are ignored.
func SortBy[T any](items []T, keys []OrderKey, cmps map[string]Comparator[T]) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range keys {
			cmp, ok := cmps[k.Field]
			if !ok {
				continue
			}
			c := cmp(items[i], items[j])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

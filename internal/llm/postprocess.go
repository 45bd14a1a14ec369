package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// BackfillFields turns a parsed fields object into the fixed key set:
// - every name in fieldNames is present; missing ones are null
// - string values are kept exactly as returned
// - numbers and booleans become strings, nested values their JSON text
// - keys matching a field case-insensitively are mapped onto it
// - unknown keys are dropped and reported
func BackfillFields(parsed any, fieldNames []string) (entity.Fields, []string, error) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected a JSON object for fields, got %s", common.ErrInvalidResponseFormat, jsonKind(parsed))
	}

	wanted := make(map[string]struct{}, len(fieldNames))
	for _, n := range fieldNames {
		wanted[n] = struct{}{}
	}

	out := entity.NewFields(fieldNames)
	var dropped []string
	// exact keys first so they win over case-insensitive aliases
	for k, v := range obj {
		if _, ok := wanted[k]; ok {
			out[k] = coerceFieldValue(v)
		}
	}
	// sorted so the first alias of a field wins regardless of map order
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		v := obj[k]
		if _, ok := wanted[k]; ok {
			continue
		}
		f, ok := constants.CanonicalField(k)
		if _, isWanted := wanted[string(f)]; !ok || !isWanted {
			dropped = append(dropped, k)
			continue
		}
		if _, exact := obj[string(f)]; exact || out[string(f)] != nil {
			dropped = append(dropped, k)
			continue
		}
		out[string(f)] = coerceFieldValue(v)
	}
	return out, dropped, nil
}

func coerceFieldValue(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}

// NormalizeSubmittals turns a parsed submittals reply into a clean list.
// Accepts {"submittals": [...]} or a bare array. A missing or null
// "submittals" key yields an empty list. Each element gets item "",
// page null and reason "" when absent; bare strings become items.
func NormalizeSubmittals(parsed any) ([]entity.Submittal, error) {
	var items []any
	switch t := parsed.(type) {
	case map[string]any:
		raw, ok := t["submittals"]
		if !ok || raw == nil {
			return []entity.Submittal{}, nil
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: \"submittals\" must be an array, got %s", common.ErrInvalidResponseFormat, jsonKind(raw))
		}
		items = list
	case []any:
		items = t
	default:
		return nil, fmt.Errorf("%w: expected a JSON object for submittals, got %s", common.ErrInvalidResponseFormat, jsonKind(parsed))
	}

	out := make([]entity.Submittal, 0, len(items))
	for _, it := range items {
		switch e := it.(type) {
		case map[string]any:
			out = append(out, entity.Submittal{
				Item:   asString(e["item"]),
				Page:   asPage(e["page"]),
				Reason: asString(e["reason"]),
			})
		case string:
			out = append(out, entity.Submittal{Item: e})
		}
	}
	return out, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// asPage accepts positive whole numbers, as JSON numbers or numeric strings.
func asPage(v any) *int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		f = float64(n)
	default:
		return nil
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return nil
	}
	p := int(f)
	return &p
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

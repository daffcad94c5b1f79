/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package registry

// Argument accessors for handlers. Arguments reach a handler only after
// schema validation, so these return the default for absent fields rather
// than reporting errors.

// StringArg returns the named string argument or def if absent.
func StringArg(args map[string]interface{}, name, def string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return def
}

// NumberArg returns the named numeric argument or def if absent. JSON numbers
// decode as float64.
func NumberArg(args map[string]interface{}, name string, def float64) float64 {
	switch v := args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// BoolArg returns the named boolean argument or def if absent.
func BoolArg(args map[string]interface{}, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

// StringSliceArg returns the named array argument's string elements.
// Non-string elements are skipped.
func StringSliceArg(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup helpers. Each takes a list of alias keys and returns the first one
// present with a usable value; deployments disagree on field names.

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case []any:
			if joined := strings.Join(toStrings(v), "\n"); joined != "" {
				return joined
			}
		}
	}
	return ""
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func boolean(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

func object(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func list(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k].([]any); ok && len(v) > 0 {
			return v
		}
	}
	return nil
}

func firstObject(items []any) map[string]any {
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func strList(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			if out := toStrings(v); len(out) > 0 {
				return out
			}
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

// toStrings flattens a JSON list. Objects contribute their title, source or
// name field.
func toStrings(items []any) []string {
	var out []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s := str(v, "title", "source", "name", "document"); s != "" {
				out = append(out, s)
			}
		case float64, bool:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

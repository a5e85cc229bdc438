package worker

import (
	"strconv"
	"strings"
)

// Значения конфигурации приходят из JSON или YAML определения и из form_data
// blueprint'а, поэтому число может оказаться строкой.

// getString возвращает строку по ключу или defaultVal.
func getString(m map[string]any, key, defaultVal string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return defaultVal
}

// getFloat возвращает число по ключу или defaultVal.
func getFloat(m map[string]any, key string, defaultVal float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getInts возвращает список целых: [200, 201] или "200,201".
func getInts(m map[string]any, key string) []int {
	var out []int
	add := func(v any) {
		switch n := v.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				out = append(out, i)
			}
		}
	}

	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			add(item)
		}
	case []int:
		out = append(out, v...)
	case string:
		for _, part := range strings.Split(v, ",") {
			add(part)
		}
	default:
		add(v)
	}
	return out
}

// lookup ищет значение сначала в конфигурации, потом во входах узла.
func lookup(config, inputs map[string]any, key string) (any, bool) {
	if v, ok := config[key]; ok && v != nil {
		return v, true
	}
	v, ok := inputs[key]
	return v, ok && v != nil
}

package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
)

// ArgContext — контекст для рендеринга аргументов исполняемого процесса.
//
// Используется в Go templates:
//   - {{ .NodeID }}       — ID узла instance (токен корреляции)
//   - {{ .CallbackURL }}  — базовый адрес протокола управления
//   - {{ .Config.key }}   — значение конфигурации (первое совпадение)
//   - {{ .Inputs.handle }} — вход, полученный от предшественника
type ArgContext struct {
	NodeID       string
	InstanceID   string
	ExecutableID string
	CallbackURL  string
	Config       map[string]any
	Inputs       map[string]any
}

// argFuncs — функции, доступные в шаблонах аргументов.
var argFuncs = template.FuncMap{
	// json сериализует значение, например список из конфигурации
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},

	// default возвращает def, если val отсутствует или пустая строка
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// join склеивает элементы списка; значения из JSON приходят как []any
	"join": func(sep string, items any) (string, error) {
		switch v := items.(type) {
		case nil:
			return "", nil
		case []string:
			return strings.Join(v, sep), nil
		case []any:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, sep), nil
		default:
			return "", fmt.Errorf("join: unsupported type %T", items)
		}
	},

	"quote": strconv.Quote,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// compiled — кэш разобранных шаблонов: аргументы одного определения
// рендерятся для каждого узла каждого instance.
var compiled sync.Map // string → *template.Template

func parseArg(tmpl string) (*template.Template, error) {
	if t, ok := compiled.Load(tmpl); ok {
		return t.(*template.Template), nil
	}

	t, err := template.New("arg").Funcs(argFuncs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	actual, _ := compiled.LoadOrStore(tmpl, t)
	return actual.(*template.Template), nil
}

// Render рендерит один аргумент. Строка без "{{" возвращается как есть.
//
//	{{ .NodeID }}
//	{{ .Config.url }}
//	{{ default "10" .Config.limit }}
func Render(tmpl string, ctx *ArgContext) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parseArg(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// RenderArgs рендерит аргументы исполняемого процесса в новый слайс.
func RenderArgs(args []string, ctx *ArgContext) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		rendered, err := Render(arg, ctx)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = rendered
	}
	return out, nil
}

package domain

import (
	"slices"
	"time"
)

// HandleType — направление точки подключения.
type HandleType string

const (
	// HandleSource — выход узла, из него начинаются рёбра.
	HandleSource HandleType = "source"

	// HandleTarget — вход узла, в него приходят рёбра.
	HandleTarget HandleType = "target"
)

// Handle — типизированная точка подключения узла.
type Handle struct {
	// ID — идентификатор handle в рамках определения узла.
	ID string `json:"id" yaml:"id"`

	// Type — source или target.
	Type HandleType `json:"type" yaml:"type"`

	// SocketType — тип данных, которые отдаёт или принимает handle.
	SocketType string `json:"socket_type" yaml:"socket_type"`

	// AllowedSocketTypes — какие типы source-handle можно подключать (только для target).
	// Пустой список означает "любой".
	AllowedSocketTypes []string `json:"allowed_socket_types,omitempty" yaml:"allowed_socket_types,omitempty"`
}

// Accepts проверяет, можно ли подключить к target-handle источник с socketType.
func (h Handle) Accepts(socketType string) bool {
	if len(h.AllowedSocketTypes) == 0 {
		return true
	}
	return slices.Contains(h.AllowedSocketTypes, socketType)
}

// InputField — описание входного поля формы узла.
type InputField struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Executable — процесс, который запускается для выполнения узла.
//
// Args могут содержать шаблоны ({{ .NodeID }}, {{ .CallbackURL }}, {{ .Config.key }}).
type Executable struct {
	ID      string   `json:"id" yaml:"id"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// WorkNodeDefinition — переиспользуемый тип узла.
//
// Определение неизменяемо после того, как на него сослался blueprint.
type WorkNodeDefinition struct {
	// ID — уникальный идентификатор определения (например, "fetch-page").
	ID string `json:"id" yaml:"id"`

	// Version — версия определения.
	Version int `json:"version" yaml:"version"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Handles — точки подключения.
	Handles []Handle `json:"handles" yaml:"handles"`

	// Inputs — поля формы, которые заполняются в blueprint.
	Inputs []InputField `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// DefaultConfigs — конфигурация по умолчанию.
	// Значения из form_data blueprint'а имеют приоритет.
	DefaultConfigs Configs `json:"default_configs,omitempty" yaml:"default_configs,omitempty"`

	// Command и Args — основной исполняемый процесс.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Executables — связанные процессы. Если пусто, используется Command/Args.
	Executables []Executable `json:"executables,omitempty" yaml:"executables,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Handle ищет handle по ID.
func (d *WorkNodeDefinition) Handle(id string) (Handle, bool) {
	for _, h := range d.Handles {
		if h.ID == id {
			return h, true
		}
	}
	return Handle{}, false
}

// RelatedExecutables возвращает процессы, которые нужно запустить для узла.
func (d *WorkNodeDefinition) RelatedExecutables() []Executable {
	if len(d.Executables) > 0 {
		return d.Executables
	}
	if d.Command == "" {
		return nil
	}
	return []Executable{{ID: d.ID, Command: d.Command, Args: d.Args}}
}

// ConfigEntry — одна запись конфигурации.
type ConfigEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
}

// Configs — упорядоченный список записей конфигурации.
// Поиск возвращает первое совпадение, поэтому записи blueprint'а
// ставятся перед значениями по умолчанию.
type Configs []ConfigEntry

// Lookup возвращает первое значение с указанным ключом.
func (c Configs) Lookup(key string) (any, bool) {
	for _, e := range c {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Map сворачивает список в map (первое вхождение ключа побеждает).
func (c Configs) Map() map[string]any {
	m := make(map[string]any, len(c))
	for _, e := range c {
		if _, exists := m[e.Key]; !exists {
			m[e.Key] = e.Value
		}
	}
	return m
}

// Merge возвращает новый список: сначала c, затем defaults.
func (c Configs) Merge(defaults Configs) Configs {
	out := make(Configs, 0, len(c)+len(defaults))
	out = append(out, c...)
	out = append(out, defaults...)
	return out
}

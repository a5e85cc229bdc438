package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format — формат вывода данных.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat проверяет значение флага --output.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Output печатает данные в stdout и сообщения в stderr.
// Сообщения не смешиваются с данными, поэтому вывод json и yaml
// можно передавать дальше по pipe.
type Output struct {
	format Format
	w      io.Writer
	errW   io.Writer
}

// NewOutput создаёт Output поверх stdout и stderr.
func NewOutput(format Format) *Output {
	return NewOutputTo(format, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с явными writer'ами.
func NewOutputTo(format Format, w, errW io.Writer) *Output {
	if format == "" {
		format = FormatTable
	}
	return &Output{format: format, w: w, errW: errW}
}

// Print выводит список: таблицу из rows или data в json/yaml.
func (o *Output) Print(headers []string, rows [][]string, data any) {
	if o.structured(data) {
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// Detail выводит один объект парами "ключ: значение".
// Пары с пустым значением пропускаются.
func (o *Output) Detail(pairs [][2]string, data any) {
	if o.structured(data) {
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		if p[1] != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", p[0], p[1])
		}
	}
	tw.Flush()
}

// structured печатает data в json или yaml и сообщает, был ли вывод.
func (o *Output) structured(data any) bool {
	switch o.format {
	case FormatJSON:
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			o.Warn("encode json: " + err.Error())
		}
		return true
	case FormatYAML:
		// yaml.v3 не знает json-тегов: приводим данные к дереву через JSON
		raw, err := json.Marshal(data)
		if err != nil {
			o.Warn("encode yaml: " + err.Error())
			return true
		}
		var tree any
		if err := json.Unmarshal(raw, &tree); err != nil {
			o.Warn("encode yaml: " + err.Error())
			return true
		}
		enc := yaml.NewEncoder(o.w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			o.Warn("encode yaml: " + err.Error())
		}
		enc.Close()
		return true
	default:
		return false
	}
}

// Success выводит сообщение об успехе.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Warn выводит предупреждение.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

package base

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Output writes v in the format selected by -format. Tables are rendered
// for records ([]map[string]any), single records (map[string]any) and
// anything else through fmt.
func (c *Command) Output(v any) error {
	var (
		out string
		err error
	)
	switch c.flagFormat {
	case FormatJSON:
		var b []byte
		b, err = json.MarshalIndent(v, "", "  ")
		out = string(b)
	case FormatYAML:
		var b []byte
		b, err = yaml.Marshal(v)
		out = strings.TrimRight(string(b), "\n")
	default:
		out, err = table(v)
	}
	if err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	c.UI.Output(out)
	return nil
}

func table(v any) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	switch rows := v.(type) {
	case []map[string]any:
		if len(rows) == 0 {
			return "No records found.", nil
		}
		cols := columns(rows)
		fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
		for _, row := range rows {
			cells := make([]string, len(cols))
			for i, col := range cols {
				cells[i] = cell(row[col])
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}

	case map[string]any:
		keys := make([]string, 0, len(rows))
		for k := range rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%s\n", k, cell(rows[k]))
		}

	default:
		fmt.Fprintf(w, "%v\n", v)
	}

	if err := w.Flush(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// columns returns the union of keys with "id" first.
func columns(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] && k != "id" {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}

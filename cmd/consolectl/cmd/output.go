package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Output format constants.
const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

// render writes v as JSON or YAML, or calls table for the default format.
func render(w io.Writer, v any, table func(t *tableWriter)) error {
	switch flagOutput {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case outputYAML:
		// Round trip through JSON so the API field names are kept.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	case outputTable, "":
		t := newTable(w)
		table(t)
		return t.Flush()
	default:
		return fmt.Errorf("unknown output format %q", flagOutput)
	}
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(w io.Writer) *tableWriter {
	return &tableWriter{w: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

func (t *tableWriter) Header(columns ...string) {
	t.AddRow(columns...)
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() error {
	return t.w.Flush()
}

func boolToStr(b bool) string {
	return strconv.FormatBool(b)
}

func idsToStr(ids []shared.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// parseIDs parses "1,2,3" into ids.
func parseIDs(s string) ([]shared.ID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []shared.ID
	for _, part := range strings.Split(s, ",") {
		id, err := shared.IDFromString(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseMoveMap parses "10=2,11=2" into a relocation map.
func parseMoveMap(s string) (map[shared.ID]shared.ID, error) {
	out := make(map[shared.ID]shared.ID)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		menu, target, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid move entry %q, want MENU=MODULE", pair)
		}
		menuID, err := shared.IDFromString(menu)
		if err != nil {
			return nil, fmt.Errorf("invalid menu id %q: %w", menu, err)
		}
		moduleID, err := shared.IDFromString(target)
		if err != nil {
			return nil, fmt.Errorf("invalid module id %q: %w", target, err)
		}
		out[menuID] = moduleID
	}
	return out, nil
}

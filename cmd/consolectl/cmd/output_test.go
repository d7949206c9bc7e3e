package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/console/pkg/domain/shared"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []shared.ID
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "1", want: []shared.ID{1}},
		{in: "3, 1,2", want: []shared.ID{3, 1, 2}},
		{in: "1,x", wantErr: true},
		{in: "-4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIDs(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMoveMap(t *testing.T) {
	got, err := parseMoveMap("10=2, 11=2")
	require.NoError(t, err)
	assert.Equal(t, map[shared.ID]shared.ID{10: 2, 11: 2}, got)

	empty, err := parseMoveMap("")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, bad := range []string{"10", "x=2", "10=y"} {
		_, err := parseMoveMap(bad)
		assert.Error(t, err, bad)
	}
}

func TestRender(t *testing.T) {
	prev := flagOutput
	defer func() { flagOutput = prev }()

	rows := []map[string]any{{"module_id": 1, "module_name": "crm"}}
	table := func(tw *tableWriter) {
		tw.Header("ID", "NAME")
		tw.AddRow("1", "crm")
	}

	tests := []struct {
		format string
		want   string
	}{
		{outputTable, "ID  NAME\n1   crm\n"},
		{outputJSON, "[\n  {\n    \"module_id\": 1,\n    \"module_name\": \"crm\"\n  }\n]\n"},
		{outputYAML, "- module_id: 1\n  module_name: crm\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			flagOutput = tt.format
			var buf bytes.Buffer
			require.NoError(t, render(&buf, rows, table))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	flagOutput = "xml"
	assert.Error(t, render(&bytes.Buffer{}, rows, table))
}

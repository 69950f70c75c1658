package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr, oldFmt := Stdout, Stderr, GlobalFormatter
	Stdout, Stderr = &out, &errOut
	t.Cleanup(func() {
		Stdout, Stderr, GlobalFormatter = oldOut, oldErr, oldFmt
	})
	return &out, &errOut
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{input: "", want: FormatPretty},
		{input: "pretty", want: FormatPretty},
		{input: "json", want: FormatJSON},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	out, errOut := captureOutput(t)
	require.NoError(t, SetGlobalFormatter(FormatJSON))
	assert.True(t, GlobalFormatter.IsJSON())

	require.NoError(t, GlobalFormatter.Output(map[string]int{"code": 1}))
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 1, decoded["code"])

	require.NoError(t, GlobalFormatter.OutputError(errors.New("boom")))
	assert.Equal(t, "Error: boom\n", errOut.String())
}

func TestPrettyFormatter(t *testing.T) {
	out, errOut := captureOutput(t)
	require.NoError(t, SetGlobalFormatter(FormatPretty))
	assert.False(t, GlobalFormatter.IsJSON())

	require.NoError(t, GlobalFormatter.Output("hello\n"))
	assert.Equal(t, "hello\n", out.String())

	require.NoError(t, GlobalFormatter.OutputError(errors.New("boom")))
	assert.Contains(t, errOut.String(), "boom")

	assert.Error(t, SetGlobalFormatter("yaml"))
}

func TestPrintCommandTable(t *testing.T) {
	out, _ := captureOutput(t)

	PrintCommandTable(CommandIcon, "Commands", []CommandRow{
		{Kind: "command", Name: "web", Command: "./serve", Description: "dev server"},
		{Kind: "command", Name: "worker", Command: "./work", Dir: "/srv"},
	})

	text := out.String()
	assert.Contains(t, text, "Commands (2)")
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "./serve")
	assert.Contains(t, text, "dev server")
	assert.Contains(t, text, "/srv")
	assert.Contains(t, text, "-")
}

func TestPrintCommandTable_Empty(t *testing.T) {
	out, _ := captureOutput(t)
	PrintCommandTable(ActionIcon, "Actions", nil)
	assert.Empty(t, out.String())
}

func TestStatusLabel(t *testing.T) {
	assert.Contains(t, StatusLabel(1), "running")
	assert.Contains(t, StatusLabel(0), "stopped")
}

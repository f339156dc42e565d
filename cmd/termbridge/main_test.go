package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/termbridge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"termbridge", "--data-dir", dataDir, "--log-level", "error"}, args...))
	return out.String(), err
}

func findFlag[T cli.Flag](t *testing.T, cmd *cli.Command, name string) T {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	var zero T
	return zero
}

func TestCommandFlags(t *testing.T) {
	app := newApp()
	commands := make(map[string]*cli.Command)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = cmd
	}

	t.Run("every command is registered", func(t *testing.T) {
		for _, name := range []string{"refresh", "map", "batch-map", "search", "stats", "feedback", "watch"} {
			assert.Contains(t, commands, name)
		}
	})

	t.Run("map source is required", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, commands["map"], "source")
		assert.True(t, f.Required)
	})

	t.Run("search top-k defaults to 10", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](t, commands["search"], "top-k")
		assert.Equal(t, 10, f.Value)
	})

	t.Run("feedback type is required", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, commands["feedback"], "type")
		assert.True(t, f.Required)
		assert.Empty(t, f.EnvVars)
	})
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error", ""} {
		assert.NoError(t, setupLogger(level), level)
	}
	err := setupLogger("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "refresh without feeds", args: []string{"refresh", "--seed=false"}, want: "no feeds selected"},
		{name: "map without code", args: []string{"map", "--source", "NAMASTE"}, want: "CODE"},
		{name: "map unknown system", args: []string{"map", "--source", "MESH", "X1"}, want: core.ErrUnknownSystem.Error()},
		{name: "batch-map without codes", args: []string{"batch-map", "-s", "NAMASTE", "-t", "LOINC"}, want: "CODE"},
		{name: "search without query", args: []string{"search"}, want: "QUERY"},
		{name: "search before refresh", args: []string{"search", "fever"}, want: "run refresh first"},
		{name: "feedback bad type", args: []string{"feedback", "--type", "MAYBE", "--source-code", "A", "--target-code", "B"}, want: core.ErrInvalidFeedbackType.Error()},
		{name: "watch without dir", args: []string{"watch"}, want: "--feed-dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		err := app.Run([]string{"termbridge", "--log-level", "loud", "stats"})
		require.Error(t, err)
	})
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	feeds := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(feeds, "loinc.yaml"), []byte(`system: LOINC
concepts:
  - code: 9279-1
    display: Respiratory rate
    semantic_tags: [observation, vital-sign]
`), 0o644))

	out, err := run(t, dir, "refresh", "--seed", "--feed-dir", feeds)
	require.NoError(t, err)
	assert.Contains(t, out, "Build: ")
	assert.Contains(t, out, "NAMASTE")

	out, err = run(t, dir, "search", "-k", "2", "Shiroroga")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 hits")
	assert.Contains(t, out, "0: NAMASTE:NAMC002 'Shiroroga'")

	out, err = run(t, dir, "map", "-s", "NAMASTE", "-t", "ICD11_BIOMEDICINE", "NAMC001")
	require.NoError(t, err)
	assert.Contains(t, out, "NAMASTE:NAMC001")
	assert.Contains(t, out, "ICD11_BIOMEDICINE:MG30 [")

	out, err = run(t, dir, "batch-map", "-s", "NAMASTE", "-t", "LOINC", "NAMC001", "UNKNOWN")
	require.NoError(t, err)
	assert.Contains(t, out, "NAMASTE:UNKNOWN\n  no mappings")

	out, err = run(t, dir, "feedback", "--type", "correct", "--source-code", "NAMC001", "--target-code", "MG30", "--adjustment", "0.1")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded feedback ")

	out, err = run(t, dir, "stats")
	require.NoError(t, err)
	var stats core.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 13, stats.TotalConcepts)
	assert.Equal(t, 1, stats.FeedbackCount)
	assert.NotEmpty(t, stats.BuildID)
}

package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldOutputJSON(t *testing.T) {
	root := &cobra.Command{Use: "metagen"}
	root.PersistentFlags().Bool("json", false, "")
	sub := &cobra.Command{Use: "targets", Run: func(*cobra.Command, []string) {}}
	sub.Flags().Bool("json", false, "")
	root.AddCommand(sub)

	assert.False(t, ShouldOutputJSON(nil))
	assert.False(t, ShouldOutputJSON(sub))

	require.NoError(t, sub.Flags().Set("json", "true"))
	assert.True(t, ShouldOutputJSON(sub))

	require.NoError(t, sub.Flags().Set("json", "false"))
	require.NoError(t, root.PersistentFlags().Set("json", "true"))
	assert.False(t, ShouldOutputJSON(sub), "an explicit local flag wins")

	other := &cobra.Command{Use: "version", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(other)
	assert.True(t, ShouldOutputJSON(other))
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, OutputJSON(&buf, map[string]int{"b": 2, "a": 1}))
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2\n}\n", buf.String())

	t.Setenv("METAGEN_JSON_COMPACT", "1")
	buf.Reset()
	require.NoError(t, OutputJSON(&buf, []string{"python"}))
	assert.Equal(t, "[\"python\"]\n", buf.String())

	assert.Error(t, OutputJSON(&buf, func() {}))
}

func TestTable(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"NAME", "SOURCE"}, [][]string{
		{"cpp", "builtin"},
		{"python", "dir"},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "NAME")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "python")
	assert.Contains(t, last, "dir")
}

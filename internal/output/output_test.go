package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestPrintJSON(t *testing.T) {
	u, out, _ := newTestUI()
	require.NoError(t, u.PrintJSON(map[string]int{"passed": 3}))
	assert.Equal(t, "{\n  \"passed\": 3\n}\n", out.String())
}

func TestSteps(t *testing.T) {
	u, out, _ := newTestUI()
	u.Steps([]string{"using version v1", "router matched pattern p1"})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "using version v1")
	assert.Contains(t, lines[1], "router matched pattern p1")
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	for _, st := range []string{"active", "candidate", "archived", "pending", "needs_analysis", "rejected", "implemented", "cancelled"} {
		assert.Contains(t, StatusColor(st), st)
	}
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestPriorityColor(t *testing.T) {
	assert.Contains(t, PriorityColor("critical"), "critical")
	assert.Equal(t, "low", PriorityColor("low"))
}

func TestConfidenceColor(t *testing.T) {
	assert.Contains(t, ConfidenceColor(0.9, 0.7), "0.90")
	assert.Contains(t, ConfidenceColor(0.5, 0.7), "0.50")
	assert.Contains(t, ConfidenceColor(0.1, 0.7), "0.10")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"v1", "active"})
	table.Append([]string{"v2", "candidate"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.Contains(t, result, "v1")
	assert.Contains(t, result, "v2")
}

func TestScoreColor(t *testing.T) {
	assert.Contains(t, ScoreColor(90, 100), "90/100")
	assert.Contains(t, ScoreColor(55, 100), "55/100")
	assert.Contains(t, ScoreColor(10, 100), "10/100")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd\u2026", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("abc", 0))
}

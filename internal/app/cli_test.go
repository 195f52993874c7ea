package app

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiksareport/internal/config"
	"fiksareport/internal/stats"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// PersistentPreRunE sets CONFIG_PATH; t.Setenv restores it afterwards.
	t.Setenv("CONFIG_PATH", "")
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCLIConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	aziza := writeFile(t, dir, "aziza.csv", azizaCSV)
	bekzod := writeFile(t, dir, "bekzod.csv", bekzodCSV)
	yaml := fmt.Sprintf(`
timezone: UTC
log_format: console
log_level: error
db_path: %q
report_output_dir: %q
source_retries: 1
digest_schedule: "0 19 * * 1-6"
sources:
  - {id: aziza, kind: csv, path: %q}
  - {id: bekzod, kind: csv, path: %q, operator: Bekzod}
`, filepath.Join(dir, "runs.db"), filepath.Join(dir, "reports"), aziza, bekzod)
	return writeFile(t, dir, "config.yaml", yaml)
}

func TestRunCommandCustomWindow(t *testing.T) {
	path := writeCLIConfig(t)

	out, err := executeCmd(t, "run", "--config", path, "--from", "2025-01-09", "--to", "2025-01-10")
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 sources loaded")
	assert.Contains(t, out, "Touches 4, unique 3, closed 2, open 1.")
	assert.Contains(t, out, "Report: ")

	out, err = executeCmd(t, "history", "--config", path, "--days")
	require.NoError(t, err)
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, "period 2025-01-09..2025-01-10")
	assert.Contains(t, out, "2025-01-10  touches=3 unique=3 closed=2 open=1 repeats=1 late=1")
}

func TestRunCommandRejectsBadDates(t *testing.T) {
	path := writeCLIConfig(t)

	_, err := executeCmd(t, "run", "--config", path, "--from", "09.01.2025", "--to", "2025-01-10")
	assert.Error(t, err)

	_, err = executeCmd(t, "run", "--config", path, "--from", "2025-01-09")
	assert.Error(t, err, "--from requires --to")
}

func TestHistoryCommandEmpty(t *testing.T) {
	out, err := executeCmd(t, "history", "--config", writeCLIConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs stored yet.")
}

func TestCheckConfigCommand(t *testing.T) {
	out, err := executeCmd(t, "check-config", "--config", writeCLIConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Timezone: UTC")
	assert.Contains(t, out, "Sources: 2 active of 2")
	assert.Contains(t, out, "bekzod (csv")
	assert.Contains(t, out, "Schedule digest: 0 19 * * 1-6, next ")
	assert.Contains(t, out, "Slack: not configured")
}

func TestCheckConfigCommandReportsInvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "timezone: UTC\nclosed_statuses: []\n")
	_, err := executeCmd(t, "check-config", "--config", path)
	assert.Error(t, err)
}

func TestWriteConfigSummaryScheduleStates(t *testing.T) {
	cfg := config.Config{
		Location:       time.UTC,
		PeriodStartDay: 20,
		Taxonomy:       stats.MustTaxonomy([]string{"won", "lost"}),
		ReportSchedule: "every hour",
	}
	var buf bytes.Buffer
	writeConfigSummary(&buf, cfg, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	out := buf.String()

	assert.Contains(t, out, "Config: (environment only)")
	assert.Contains(t, out, "Current period: 2024-12-20 .. 2025-01-19")
	assert.Contains(t, out, "Closed statuses: won | lost")
	assert.Contains(t, out, "Schedule report: invalid")
	assert.Contains(t, out, "Schedule digest: disabled")
	assert.True(t, strings.HasSuffix(out, "LLM narrative: not configured\n"))
}

package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photobackup/pkg/backup"
	"photobackup/pkg/ui"
)

func TestChangedFlagsOnlyReportsSetFlags(t *testing.T) {
	cmd := backupCmd
	require.NoError(t, cmd.Flags().Parse([]string{"--concurrent", "5", "--timeout", "10s", "--skip-existing"}))

	flags := changedFlags(cmd)
	assert.Equal(t, 5, flags["concurrent"])
	assert.Equal(t, 10*time.Second, flags["timeout"])
	assert.Equal(t, true, flags["skip-existing"])
	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "allow-insecure-tls")
	assert.NotContains(t, flags, "rate-limit")
}

func TestBackupRequiresOwner(t *testing.T) {
	assert.Error(t, backupCmd.Args(backupCmd, nil))
	assert.NoError(t, backupCmd.Args(backupCmd, []string{"someone"}))
	assert.NoError(t, backupCmd.Args(backupCmd, []string{"someone", "./out"}))
	assert.Error(t, backupCmd.Args(backupCmd, []string{"a", "b", "c"}))
}

func TestPrintSummaryReportsBytesWritten(t *testing.T) {
	var buf bytes.Buffer
	ui.SetOutput(&buf)
	defer ui.SetOutput(os.Stdout)

	summary := &backup.Summary{
		OwnerID: "someone",
		Albums:  []*backup.DownloadOutcome{{Album: "Travel", Attempted: 3, Saved: 3}},
	}
	printSummary(summary, 2048, time.Second)

	out := buf.String()
	assert.Contains(t, out, "3 of 3")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "Backup of someone finished")
}

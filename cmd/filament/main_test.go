package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devadigapratham/filamentlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "filaments.db")
	today := time.Now().Format("2006-01-02")

	out, err := run(t, "add", "--db", db, "--log-mode", "prod", "Maker", "PLA", "red", "1000", "2025-01-03")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry added: Maker, PLA, red, 1000g on 2025-01-03")

	out, err = run(t, "add", "--db", db, "--log-mode", "prod", "Maker", "PLA")
	assert.Error(t, err, "PLA is not a weight")

	out, err = run(t, "add", "--db", db, "--log-mode", "prod", "", "PLA", "", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry added: Maker, PLA, red, 1000g on "+today)

	out, err = run(t, "add", "--db", db, "--log-mode", "prod", "Maker2", "PLA", "green", "800")
	require.NoError(t, err)
	assert.Contains(t, out, "Entry added: Maker2, PLA, green, 800g on "+today)

	out, err = run(t, "match", "--db", db, "--log-mode", "prod", "--color", "red")
	require.NoError(t, err)
	assert.Contains(t, out, "#2 Maker, PLA, red, 1000g")

	out, err = run(t, "match", "--db", db, "--log-mode", "prod", "--type", "ABS")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching entry.")

	out, err = run(t, "list", "--db", db, "--log-mode", "prod")
	require.NoError(t, err)
	assert.Contains(t, out, "Maker2")

	out, err = run(t, "summary", "--db", db, "--log-mode", "prod")
	require.NoError(t, err)
	assert.Contains(t, out, "Maker2 PLA (green)")
	assert.Contains(t, out, "800.0")

	png := filepath.Join(dir, "usage.png")
	out, err = run(t, "report", "--db", db, "--log-mode", "prod", "--out", png)
	require.NoError(t, err)
	assert.Contains(t, out, "saved to "+png)
	_, err = os.Stat(png)
	assert.NoError(t, err)
}

func TestCLIRequiresWeight(t *testing.T) {
	_, err := run(t, "add", "--db", filepath.Join(t.TempDir(), "f.db"))
	assert.Error(t, err)
}

func TestCLINegativeWeight(t *testing.T) {
	db := filepath.Join(t.TempDir(), "f.db")

	_, err := run(t, "add", "--db", db, "--log-mode", "prod", "Maker", "PLA", "red", "-5")
	assert.ErrorIs(t, err, models.ErrInvalidWeight)

	_, err = run(t, "add", "--db", db, "--log-mode", "prod", "-2.5", "2025-01-03")
	assert.ErrorIs(t, err, models.ErrInvalidWeight)

	_, err = run(t, "add", "--db", db, "--log-mode", "prod", "--", "Maker", "PLA", "red", "-5")
	assert.ErrorIs(t, err, models.ErrInvalidWeight)

	_, err = run(t, "add", "--db", db, "-x", "1000")
	assert.ErrorContains(t, err, "unknown shorthand flag")
}

func TestCLIJournal(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "filaments.db")
	t.Setenv("FILAMENT_JOURNAL_DIR", filepath.Join(dir, "journal"))

	t.Run("journal_flag", func(t *testing.T) {
		out, err := run(t, "add", "--db", db, "--log-mode", "prod", "--journal", "Maker", "PLA", "red", "1000", "2025-01-03")
		require.NoError(t, err)
		assert.Contains(t, out, "Entry added: Maker, PLA, red, 1000g on 2025-01-03")
	})

	t.Run("journal_env", func(t *testing.T) {
		t.Setenv("FILAMENT_JOURNAL", "true")
		out, err := run(t, "add", "--db", db, "--log-mode", "prod", "750", "2025-01-05")
		require.NoError(t, err)
		assert.Contains(t, out, "Entry added: Maker, PLA, red, 750g on 2025-01-05")
	})

	t.Run("entries_are_stored_once", func(t *testing.T) {
		out, err := run(t, "list", "--db", db, "--log-mode", "prod")
		require.NoError(t, err)
		assert.Contains(t, out, "2025-01-03")
		assert.Contains(t, out, "2025-01-05")
		assert.Equal(t, 3, strings.Count(out, "\n"), "header plus two rows")
	})

	_, err := os.Stat(filepath.Join(dir, "journal", "raft-log.db"))
	assert.NoError(t, err)
}

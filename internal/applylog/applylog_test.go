package applylog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-buns-migrate/internal/applylog"
)

func TestLogger_Applied_WritesLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, applylog.DefaultFileName)
	log := applylog.Open(path)

	log.Applied("1_initial", "abc123")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, "up")
	assert.Contains(t, line, "1_initial")
	assert.Contains(t, line, "checksum=abc123")
}

func TestLogger_RolledBack_WritesLine(t *testing.T) {
	dir := t.TempDir()
	log := applylog.Open(filepath.Join(dir, applylog.DefaultFileName))

	log.RolledBack("2_second")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, applylog.DefaultFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "down")
	assert.Contains(t, string(data), "2_second")
}

func TestLogger_Failed_WritesErrorDetail(t *testing.T) {
	dir := t.TempDir()
	log := applylog.Open(filepath.Join(dir, applylog.DefaultFileName))

	log.Failed("up", "3_third", errors.New("syntax error near FOO"))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(filepath.Join(dir, applylog.DefaultFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "up-failed")
	assert.Contains(t, string(data), "3_third")
	assert.Contains(t, string(data), "syntax error near FOO")
}

func TestLogger_AppendsAcrossMultipleEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, applylog.DefaultFileName)
	log := applylog.Open(path)

	log.Applied("1_initial", "sum1")
	log.Applied("2_second", "sum2")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1_initial")
	assert.Contains(t, string(data), "2_second")
}

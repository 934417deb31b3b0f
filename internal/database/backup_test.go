package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stocktake/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stocktake.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("database contents"), 0o644))

	backupDir := filepath.Join(dir, "backups")
	logger := zerolog.Nop()
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "stocktake_")

	data, err := os.ReadFile(filepath.Join(backupDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "database contents", string(data))
}

func TestCleanupOldBackups(t *testing.T) {
	backupDir := t.TempDir()

	oldPath := filepath.Join(backupDir, "stocktake_20200101_000000.db")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(oldPath, old, old))

	freshPath := filepath.Join(backupDir, "stocktake_20990101_000000.db")
	require.NoError(t, os.WriteFile(freshPath, []byte("fresh"), 0o644))

	unrelated := filepath.Join(backupDir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	logger := zerolog.Nop()
	svc := NewBackupService("", config.BackupConfig{
		RetentionDays: 7,
		StoragePath:   backupDir,
	}, &logger)

	svc.CleanupOldBackups()

	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, freshPath)
	assert.FileExists(t, unrelated, "non-backup files are left alone")
}

package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"
	"slotbook/internal/repository/storetest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.UpdateDay(ctx, "2024-06-01", func(day *models.DayLedger) error {
		day.Bookings = append(day.Bookings, storetest.Booking("b1", "2024-06-01", models.SlotLabel(9), "football"))
		return nil
	})
	require.NoError(t, err)

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		assert.FileExists(t, path)

		snapshot, err := sql.Open("sqlite3", path)
		require.NoError(t, err)
		defer snapshot.Close()

		var count int
		require.NoError(t, snapshot.QueryRow(`SELECT COUNT(*) FROM bookings`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		assert.Equal(t, 1, s.CleanupOldBackups())
		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})
}

func TestBackupServiceInterval(t *testing.T) {
	logger := zerolog.Nop()
	assert.Equal(t, 24*time.Hour, NewBackupService(nil, config.BackupConfig{}, &logger).Interval())
	assert.Equal(t, time.Hour, NewBackupService(nil, config.BackupConfig{Schedule: "1h"}, &logger).Interval())
	assert.Equal(t, 24*time.Hour, NewBackupService(nil, config.BackupConfig{Schedule: "daily"}, &logger).Interval())
}

func TestBackupServiceDisabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { s.Start(ctx) })
}

package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/config"
	"slotbook/internal/events"
	"slotbook/internal/grounds"
	"slotbook/internal/repository"
	"slotbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) string {
	t.Helper()
	opts := service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC) },
	}
	reg := grounds.Default()
	bus := events.NewEventBus()
	svc := service.NewBookingService(repository.NewMemoryLedgerStore(), reg, bus, opts, nil)
	ts := httptest.NewServer(api.NewHTTPServer(config.APIConfig{}, svc, reg, bus, nil, nil).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"09:00 - 10:00", "10:00 - 11:00"}, splitCSV("09:00 - 10:00, 10:00 - 11:00,"))
}

func TestBookThenShowSlots(t *testing.T) {
	url := newServer(t)

	var out bytes.Buffer
	err := run([]string{"-api", url, "book", "-date", "2024-06-01", "-sport", "football",
		"-slots", "09:00 - 10:00", "-name", "Alice", "-mobile", "9876543210"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Sport: football")

	out.Reset()
	require.NoError(t, run([]string{"-api", url, "slots", "-date", "2024-06-01", "-sport", "cricket"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 24)
	assert.Equal(t, "09:00 - 10:00  taken", lines[9])
	assert.Equal(t, "10:00 - 11:00  free", lines[10])

	out.Reset()
	require.NoError(t, run([]string{"-api", url, "toggle", "-date", "2024-06-01", "-slot", "10:00 - 11:00"}, &out))
	assert.Contains(t, out.String(), "blocked=true")

	out.Reset()
	require.NoError(t, run([]string{"-api", url, "cancel", "-date", "2024-06-01", "-slot", "09:00 - 10:00",
		"-sport", "football", "-name", "alice"}, &out))
	assert.Equal(t, "cancelled 1 booking(s)\n", out.String())
}

func TestExportWritesFile(t *testing.T) {
	url := newServer(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	var out bytes.Buffer
	require.NoError(t, run([]string{"-api", url, "export", "-from", "2024-06-01", "-to", "2024-06-02", "-out", path}, &out))
	assert.FileExists(t, path)

	bad := filepath.Join(t.TempDir(), "bad.xlsx")
	err := run([]string{"-api", url, "export", "-from", "2024-06-02", "-to", "2024-06-01", "-out", bad}, &out)
	assert.Error(t, err)
	assert.NoFileExists(t, bad)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"fly"}, &out))
	assert.Error(t, run(nil, &out))
}

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, FromContext(AddToContext(context.Background(), l)))
}

func TestNew(t *testing.T) {
	t.Run("json console", func(t *testing.T) {
		var buf bytes.Buffer
		h, closer, err := New(Config{Level: "debug", Format: "json"}, &buf)
		require.NoError(t, err)
		defer closer.Close()

		slog.New(h).Debug("hello", "k", "v")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
		assert.Contains(t, buf.String(), `"k":"v"`)
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		h, _, err := New(Config{Level: "warn"}, &buf)
		require.NoError(t, err)
		slog.New(h).Info("quiet")
		assert.Empty(t, buf.String())
	})

	t.Run("rotating file", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "nasattach.log")
		h, closer, err := New(Config{File: file, MaxSizeMB: 1}, &buf)
		require.NoError(t, err)

		slog.New(h).Info("to both")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to both")
		assert.Contains(t, buf.String(), "to both")
	})

	t.Run("invalid", func(t *testing.T) {
		_, _, err := New(Config{Level: "loud"}, nil)
		assert.Error(t, err)
		_, _, err = New(Config{Format: "xml"}, nil)
		assert.Error(t, err)
	})
}

func TestHostLogHandler(t *testing.T) {
	dir := t.TempDir()
	pathFor := func(runID, host string) string {
		return filepath.Join(dir, runID, host+".log")
	}
	var console bytes.Buffer
	log := slog.New(NewHostLogHandler(slog.NewTextHandler(&console, nil), pathFor))

	runLog := log.With(RunIDKey, "run1")
	runLog.Info("cluster resolved", "hosts", 2)
	runLog.With(HostKey, "esx1").Info("mounting datastore", "datastore", "nfs-fs1")
	runLog.Info("mounted", HostKey, "esx2")
	log.Info("no run", HostKey, "esx3")

	esx1, err := os.ReadFile(pathFor("run1", "esx1"))
	require.NoError(t, err)
	assert.Contains(t, string(esx1), "INFO mounting datastore datastore=nfs-fs1")
	assert.NotContains(t, string(esx1), "run_id=")

	esx2, err := os.ReadFile(pathFor("run1", "esx2"))
	require.NoError(t, err)
	assert.Contains(t, string(esx2), "mounted")

	_, err = os.Stat(pathFor("", "esx3"))
	assert.True(t, os.IsNotExist(err))

	assert.Contains(t, console.String(), "cluster resolved")
	assert.Contains(t, console.String(), "no run")
}

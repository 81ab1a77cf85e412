package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refinery/internal/config"
)

func logFile(dir string, cat Category) string {
	return filepath.Join(dir, time.Now().Format("2006-01-02")+"_"+string(cat)+".log")
}

func TestAllCategoriesLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(config.LoggingConfig{DebugMode: true, Level: "debug", Dir: dir}))
	t.Cleanup(CloseAll)

	categories := []Category{
		CategoryBoot, CategorySession, CategoryAPI, CategoryServer,
		CategoryStore, CategoryRefine, CategoryUI,
	}
	for _, cat := range categories {
		assert.True(t, IsCategoryEnabled(cat))
		Get(cat).Sugar().Infof("info for %s", cat)
		Get(cat).Debug("debug line")
	}
	CloseAll()

	for _, cat := range categories {
		data, err := os.ReadFile(logFile(dir, cat))
		require.NoError(t, err, "category %s", cat)
		assert.Contains(t, string(data), "info for "+string(cat))
		assert.Contains(t, string(data), "debug line")
	}
}

func TestDisabledWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Initialize(config.LoggingConfig{DebugMode: false, Dir: dir}))
	t.Cleanup(CloseAll)

	Boot("should not appear")
	UI("nor this")

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, IsCategoryEnabled(CategoryBoot))
}

func TestCategoryFilterAndLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(config.LoggingConfig{
		DebugMode:  true,
		Level:      "warn",
		Dir:        dir,
		Categories: map[string]bool{"api": false},
	}))
	t.Cleanup(CloseAll)

	Get(CategoryAPI).Error("hidden")
	Get(CategoryUI).Debug("below level")
	Get(CategoryUI).Warn("kept")
	CloseAll()

	_, err := os.Stat(logFile(dir, CategoryAPI))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(logFile(dir, CategoryUI))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below level")
	assert.Contains(t, string(data), "kept")
}

func TestJSONFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(config.LoggingConfig{DebugMode: true, JSONFormat: true, Dir: dir}))
	t.Cleanup(CloseAll)

	BootError("boot failed: %d", 42)
	CloseAll()

	data, err := os.ReadFile(logFile(dir, CategoryBoot))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boot", entry["logger"])
	assert.Equal(t, "boot failed: 42", entry["msg"])
}

func TestInitializeRequiresDir(t *testing.T) {
	err := Initialize(config.LoggingConfig{DebugMode: true})
	assert.Error(t, err)
	t.Cleanup(func() { _ = Initialize(config.LoggingConfig{}) })
}

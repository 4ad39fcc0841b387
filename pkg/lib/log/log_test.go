package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"debug":   LevelDebug,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := Logger("test/component")
	SetDefault(New(&buf, LevelDebug, false))

	logger.Debug("切换后输出", "k", "v")
	assert.Contains(t, buf.String(), "component=test/component")
	assert.Contains(t, buf.String(), "k=v")
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "dnspub.log")
	closer, err := Setup(Options{Level: "info", File: path, JSON: true})
	require.NoError(t, err)
	require.NotNil(t, closer)

	Logger("setup").Info("写入文件")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"setup"`)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}

package debuglog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "rcon-debug.log"))
}

func TestSinkMissingSentinel(t *testing.T) {
	s := newTestSink(t)

	assert.Equal(t, MissingSentinel, s.ReadAll())
	assert.Equal(t, MissingSentinel, s.ReadTail(5))

	info := s.Info()
	assert.False(t, info.Exists)
	assert.Zero(t, info.Size)
}

func TestSinkAppendAndRead(t *testing.T) {
	s := newTestSink(t)

	s.Append("connecting", map[string]any{"address": "192.168.1.10:2306"})
	s.Append("connected", nil)

	content := s.ReadAll()
	assert.Contains(t, content, "connecting")
	assert.Contains(t, content, `"address": "192.168.1.10:2306"`)
	assert.Contains(t, content, "connected")
	assert.Equal(t, 2, strings.Count(content, separator))

	info := s.Info()
	assert.True(t, info.Exists)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, s.Path(), info.Path)
}

func TestSinkReadTail(t *testing.T) {
	s := newTestSink(t)
	for i := 0; i < 5; i++ {
		s.Append("entry", nil)
	}

	tail := s.ReadTail(2)
	lines := strings.Split(strings.TrimRight(tail, "\n"), "\n")
	assert.Len(t, lines, 2)

	assert.Equal(t, s.ReadAll(), s.ReadTail(1000), "tail larger than file returns everything")
	assert.Equal(t, s.ReadAll(), s.ReadTail(0), "non-positive n returns everything")
}

func TestSinkClear(t *testing.T) {
	s := newTestSink(t)

	assert.True(t, s.Clear(), "clearing a missing file reports gone")

	s.Append("entry", nil)
	require.NotEqual(t, MissingSentinel, s.ReadAll())

	assert.True(t, s.Clear())
	assert.Equal(t, MissingSentinel, s.ReadAll())
}

func TestSinkOpen(t *testing.T) {
	s := newTestSink(t)

	_, err := s.Open()
	assert.Error(t, err, "missing file cannot be opened")

	s.Append("entry", nil)
	f, err := s.Open()
	require.NoError(t, err)
	f.Close()
}

func TestNilSink(t *testing.T) {
	var s *Sink

	s.Append("entry", nil)
	assert.Equal(t, MissingSentinel, s.ReadAll())
	assert.Equal(t, MissingSentinel, s.ReadTail(3))
	assert.True(t, s.Clear())
	assert.Empty(t, s.Path())
	assert.Equal(t, FileInfo{}, s.Info())

	_, err := s.Open()
	assert.Error(t, err)
}

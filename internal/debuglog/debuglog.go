// Package debuglog is the RCON troubleshooting trail: an append-only flat
// file recording every connection attempt and command exchange. Writes are
// best-effort and never surface errors to the caller, so logging can never
// break the operation being logged.
package debuglog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MissingSentinel is returned by reads when the log has never been written.
const MissingSentinel = "Debug log does not exist yet."

const separator = "----------------------------------------"

// Sink appends timestamped diagnostic blocks to a single flat file.
// A nil Sink is valid and discards everything.
type Sink struct {
	mu   sync.Mutex
	path string
}

// New creates a sink writing to the given path. The file is created on first
// append, not here.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the backing file path.
func (s *Sink) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Append writes one timestamped block: message, optional pretty-printed
// payload, separator. I/O failures are swallowed.
func (s *Sink) Append(message string, payload map[string]any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), message)
	if len(payload) > 0 {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err == nil {
			b.Write(data)
			b.WriteByte('\n')
		}
	}
	b.WriteString(separator)
	b.WriteByte('\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("debug log open failed")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("debug log write failed")
	}
}

// ReadAll returns the full log content, or the missing sentinel.
func (s *Sink) ReadAll() string {
	if s == nil {
		return MissingSentinel
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return MissingSentinel
	}
	return string(data)
}

// ReadTail returns the last n lines of the log, or the missing sentinel.
func (s *Sink) ReadTail(n int) string {
	content := s.ReadAll()
	if content == MissingSentinel || n <= 0 {
		return content
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[len(lines)-n:], "\n") + "\n"
}

// Clear deletes the log file. Returns true if the file is gone afterwards,
// including when it never existed.
func (s *Sink) Clear() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	return err == nil || os.IsNotExist(err)
}

// FileInfo describes the backing file for the log viewer.
type FileInfo struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Size   int64  `json:"size"`
}

// Info returns path, existence and size of the backing file.
func (s *Sink) Info() FileInfo {
	if s == nil {
		return FileInfo{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info := FileInfo{Path: s.path}
	st, err := os.Stat(s.path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.Size = st.Size()
	return info
}

// Open returns a reader over the current log content for streaming downloads.
func (s *Sink) Open() (io.ReadCloser, error) {
	if s == nil {
		return nil, os.ErrNotExist
	}
	return os.Open(s.path)
}

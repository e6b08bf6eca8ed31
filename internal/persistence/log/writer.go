package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	// onClose receives the path of every segment after it is closed.
	onClose func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// OnSegmentClosed registers fn to be called with each closed segment's path,
// both on hourly rotation and on Close. fn runs with the writer locked.
func (w *JSONLZstdWriter) OnSegmentClosed(fn func(path string)) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	p := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	// Each rotation starts a new zstd frame; appending to an existing hour
	// file keeps it a valid multi-frame stream.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var closed string
	if w.f != nil {
		closed = w.pathForHour(w.curHour)
	}
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && err1 == nil && w.onClose != nil {
		w.onClose(closed)
	}
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

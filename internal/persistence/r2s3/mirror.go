package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader is the object store side of a Mirror.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Stats struct {
	QueueDepth      int
	Enqueued        uint64
	Dropped         uint64
	Uploaded        uint64
	Failed          uint64
	LastSuccessUnix int64
}

// Mirror copies closed journal segments to an object store in the background.
// Object keys are the segment's path relative to baseDir, under prefix.
type Mirror struct {
	up      Uploader
	baseDir string
	prefix  string
	log     *log.Logger

	jobs     chan string
	wait     time.Duration
	attempts int
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup
	closed   atomic.Bool

	enqueued    atomic.Uint64
	dropped     atomic.Uint64
	uploaded    atomic.Uint64
	failed      atomic.Uint64
	lastSuccess atomic.Int64
}

func NewMirror(up Uploader, baseDir, prefix string, workers int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	m := &Mirror{
		up:       up,
		baseDir:  baseDir,
		prefix:   strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:      logger,
		jobs:     make(chan string, 256),
		wait:     25 * time.Millisecond,
		attempts: 4,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 200 * time.Millisecond
		},
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Enqueue schedules localPath for upload. It waits briefly when the queue is
// full and then drops the segment; the local file is kept either way.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil || m.closed.Load() {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(m.wait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.printf("mirror drop local=%s dropped_total=%d", localPath, n)
	}
}

// Close uploads what is queued and stops the workers.
func (m *Mirror) Close() {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(m.jobs),
		Enqueued:        m.enqueued.Load(),
		Dropped:         m.dropped.Load(),
		Uploaded:        m.uploaded.Load(),
		Failed:          m.failed.Load(),
		LastSuccessUnix: m.lastSuccess.Load(),
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for p := range m.jobs {
		key, err := m.objectKey(p)
		if err != nil {
			m.failed.Add(1)
			m.printf("mirror skip local=%s err=%v", p, err)
			continue
		}
		if err := m.upload(key, p); err != nil {
			m.failed.Add(1)
			m.printf("mirror upload failed key=%s err=%v", key, err)
			continue
		}
		m.uploaded.Add(1)
		m.lastSuccess.Store(time.Now().Unix())
	}
}

func (m *Mirror) upload(key, localPath string) error {
	var err error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < m.attempts {
			time.Sleep(m.backoff(attempt))
		}
	}
	return err
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(m.baseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}

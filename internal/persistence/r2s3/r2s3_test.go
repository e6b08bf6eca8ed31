package r2s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPutFileSignsRequest(t *testing.T) {
	var (
		gotPath, gotAuth, gotHash, gotDate string
		gotBody                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method=%s", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		gotDate = r.Header.Get("x-amz-date")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, Bucket: "journals", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "seg.jsonl.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "/world 1//runs/seg.jsonl.zst", local); err != nil {
		t.Fatalf("put: %v", err)
	}

	sum := sha256.Sum256([]byte("payload"))
	if gotPath != "/journals/world%201/runs/seg.jsonl.zst" {
		t.Fatalf("path=%q", gotPath)
	}
	if string(gotBody) != "payload" || gotHash != hex.EncodeToString(sum[:]) || gotDate != "20240501T103000Z" {
		t.Fatalf("body=%q hash=%q date=%q", gotBody, gotHash, gotDate)
	}
	prefix := "AWS4-HMAC-SHA256 Credential=AK/20240501/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature="
	if !strings.HasPrefix(gotAuth, prefix) || len(gotAuth) != len(prefix)+64 {
		t.Fatalf("auth=%q", gotAuth)
	}
}

func TestPutFileReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := New(Config{Endpoint: srv.URL, Bucket: "b", AccessKeyID: "AK", SecretAccessKey: "SK"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	local := filepath.Join(t.TempDir(), "x")
	if err := os.WriteFile(local, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err = c.PutFile(context.Background(), "x", local)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
	if err := c.PutFile(context.Background(), "/", local); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"},
		{Endpoint: "r2.example.com", AccessKeyID: "a", SecretAccessKey: "s"},
		{Endpoint: "ftp://r2.example.com", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"},
	} {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
	c, err := New(Config{Endpoint: "acct.r2.example.com/", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.endpoint != "https://acct.r2.example.com" || c.region != "auto" {
		t.Fatalf("endpoint=%q region=%q", c.endpoint, c.region)
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("503")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsWithPrefix(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{fails: 1}
	m := NewMirror(up, dir, "/prod/", 1, nil)
	m.backoff = func(int) time.Duration { return 0 }

	m.Enqueue(filepath.Join(dir, "runs", "runs-2024-05-01-10.jsonl.zst"))
	m.Enqueue(filepath.Join(dir, "..", "elsewhere.jsonl.zst"))
	m.Close()

	if diff := cmp.Diff([]string{"prod/runs/runs-2024-05-01-10.jsonl.zst"}, up.keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	st := m.Stats()
	if st.Enqueued != 2 || st.Uploaded != 1 || st.Failed != 1 || st.Dropped != 0 {
		t.Fatalf("stats=%+v", st)
	}
	// No-op after close.
	m.Enqueue(filepath.Join(dir, "late"))
	if m.Stats().Enqueued != 2 {
		t.Fatalf("enqueue after close counted")
	}
}

func TestMirrorGivesUpAfterRetries(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{fails: 10}
	m := NewMirror(up, dir, "", 1, nil)
	m.backoff = func(int) time.Duration { return 0 }
	m.Enqueue(filepath.Join(dir, "a.jsonl.zst"))
	m.Close()
	if st := m.Stats(); st.Failed != 1 || st.Uploaded != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if up.fails != 6 {
		t.Fatalf("attempts=%d want 4", 10-up.fails)
	}
}

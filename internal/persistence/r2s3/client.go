package r2s3

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	algorithm     = "AWS4-HMAC-SHA256"
	defaultRegion = "auto"
	service       = "s3"
	signedHeaders = "host;x-amz-content-sha256;x-amz-date"
)

// Config addresses one bucket on an S3-compatible store (R2, MinIO, S3).
type Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Region defaults to "auto", which R2 expects.
	Region string
}

// Client uploads files with path-style PUT requests signed with SigV4.
type Client struct {
	endpoint string
	bucket   string
	keyID    string
	secret   string
	region   string
	http     *http.Client
	now      func() time.Time
}

func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	keyID := strings.TrimSpace(cfg.AccessKeyID)
	secret := strings.TrimSpace(cfg.SecretAccessKey)
	if endpoint == "" || bucket == "" || keyID == "" || secret == "" {
		return nil, fmt.Errorf("r2s3: endpoint, bucket and credentials are required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("r2s3: parse endpoint: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("r2s3: invalid endpoint %q", cfg.Endpoint)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	return &Client{
		endpoint: strings.TrimRight(u.String(), "/"),
		bucket:   bucket,
		keyID:    keyID,
		secret:   secret,
		region:   region,
		http:     &http.Client{Timeout: 2 * time.Minute},
		now:      time.Now,
	}, nil
}

// PutFile uploads localPath as key, replacing any existing object.
func (c *Client) PutFile(ctx context.Context, key, localPath string) error {
	key = cleanKey(key)
	if key == "" {
		return fmt.Errorf("r2s3: empty object key")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("r2s3: %s is a directory", localPath)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	payloadHash := hex.EncodeToString(h.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	uri := "/" + c.bucket + "/" + escapeKey(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+uri, f)
	if err != nil {
		return err
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", "application/zstd")
	c.sign(req, uri, payloadHash, c.now().UTC())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return fmt.Errorf("r2s3: put %s: status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(body)))
}

// sign sets the SigV4 headers for a PUT whose canonical URI is uri.
func (c *Client) sign(req *http.Request, uri, payloadHash string, t time.Time) {
	amzDate := t.Format("20060102T150405Z")
	day := t.Format("20060102")
	host := req.URL.Host

	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	canonical := strings.Join([]string{
		req.Method,
		uri,
		"",
		"host:" + host + "\nx-amz-content-sha256:" + payloadHash + "\nx-amz-date:" + amzDate + "\n",
		signedHeaders,
		payloadHash,
	}, "\n")
	scope := day + "/" + c.region + "/" + service + "/aws4_request"
	sum := sha256.Sum256([]byte(canonical))
	toSign := algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(sum[:])

	key := hmacSHA256([]byte("AWS4"+c.secret), day)
	key = hmacSHA256(key, c.region)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, "aws4_request")
	sig := hex.EncodeToString(hmacSHA256(key, toSign))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, c.keyID, scope, signedHeaders, sig))
}

// cleanKey normalizes slashes and rejects keys escaping the bucket root.
func cleanKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return ""
	}
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return ""
	}
	return key
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func hmacSHA256(key []byte, data string) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(data))
	return m.Sum(nil)
}

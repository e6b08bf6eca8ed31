package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"veinmine.ai/internal/persistence/r2s3"
)

// buildMirror returns the journal mirror configured from VEIN_R2_* env vars,
// or nil when VEIN_R2_MIRROR is unset or false.
func buildMirror(dataDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	if !envBool("VEIN_R2_MIRROR", false) {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Config{
		Endpoint:        os.Getenv("VEIN_R2_ENDPOINT"),
		Bucket:          os.Getenv("VEIN_R2_BUCKET"),
		AccessKeyID:     os.Getenv("VEIN_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("VEIN_R2_SECRET_ACCESS_KEY"),
		Region:          os.Getenv("VEIN_R2_REGION"),
	})
	if err != nil {
		return nil, fmt.Errorf("VEIN_R2_MIRROR=true: %w", err)
	}
	workers := envInt("VEIN_R2_UPLOAD_WORKERS", 2)
	return r2s3.NewMirror(client, dataDir, strings.TrimSpace(os.Getenv("VEIN_R2_PREFIX")), workers, logger), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

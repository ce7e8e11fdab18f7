package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
)

// ProfileSink receives a denormalized profile snapshot. Writes are best
// effort; the caller keeps its local record regardless of the outcome.
type ProfileSink interface {
	Save(ctx context.Context, key string, snapshot map[string]any) error
}

type bucketSink struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	prefix        string
}

func NewProfileSink(log *logger.Logger) (ProfileSink, error) {
	sinkLog := log.With("client", "GCSProfileSink")

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	prefix := strings.TrimSpace(os.Getenv("GCS_PROFILE_PREFIX"))
	if prefix == "" {
		prefix = "student_profiles"
	}

	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketSink{
		log:           sinkLog,
		storageClient: stClient,
		bucketName:    bucket,
		prefix:        prefix,
	}, nil
}

func (bs *bucketSink) Save(ctx context.Context, key string, snapshot map[string]any) error {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Second)
	defer cancel()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode profile snapshot: %w", err)
	}

	objectKey := fmt.Sprintf("%s/%s.json", bs.prefix, key)
	w := bs.storageClient.Bucket(bs.bucketName).Object(objectKey).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write profile snapshot to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	bs.log.Debug("Profile snapshot written", "object_key", objectKey)
	return nil
}

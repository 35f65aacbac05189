package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"TechPulse/backend/go/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, object string
	body           []byte
	contentType    string
	err            error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(body)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.bucket, f.object, f.body, f.contentType = bucket, object, body, opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestArchiveUploadsSnapshot(t *testing.T) {
	generated := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	slot := &models.Slot{
		Items:       []models.ContentItem{{ID: "a", Title: "Chip news", Score: 80}},
		Provider:    "perplexity",
		GeneratedAt: generated,
		ExpiresAt:   generated.Add(24 * time.Hour),
	}
	putter := &fakePutter{}
	a := NewMinioArchiver(putter, "techpulse-snapshots")
	key := models.NewCacheKey(models.SectionAI, models.PeriodDaily)

	require.NoError(t, a.Archive(context.Background(), key, models.ItemTypeNews, slot))
	assert.Equal(t, "techpulse-snapshots", putter.bucket)
	assert.Equal(t, "snapshots/ai/daily/news/20250203T040506.000000000Z.json", putter.object)
	assert.Equal(t, "application/json", putter.contentType)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(putter.body, &snap))
	assert.Equal(t, key, snap.Key)
	assert.Equal(t, models.ItemTypeNews, snap.ItemType)
	assert.Equal(t, "Chip news", snap.Slot.Items[0].Title)
}

func TestArchiveWrapsUploadErrors(t *testing.T) {
	a := NewMinioArchiver(&fakePutter{err: errors.New("access denied")}, "b")
	err := a.Archive(context.Background(), "ml#weekly", models.ItemTypePatents, &models.Slot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	assert.NoError(t, a.Archive(context.Background(), "ml#weekly", models.ItemTypePatents, nil))
}

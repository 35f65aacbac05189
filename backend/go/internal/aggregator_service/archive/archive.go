// Package archive stores an immutable JSON snapshot of every written slot in
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"TechPulse/backend/go/internal/models"

	"github.com/minio/minio-go/v7"
)

// ObjectPutter is the part of *minio.Client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Snapshot is the archived document.
type Snapshot struct {
	Key      models.CacheKey `json:"key"`
	Section  models.Section  `json:"section"`
	Period   models.Period   `json:"period"`
	ItemType models.ItemType `json:"itemType"`
	Slot     *models.Slot    `json:"slot"`
}

// MinioArchiver writes snapshots to a bucket under snapshots/{section}/{period}/{type}/.
type MinioArchiver struct {
	client ObjectPutter
	bucket string
}

// NewMinioArchiver creates an archiver for bucket.
func NewMinioArchiver(client ObjectPutter, bucket string) *MinioArchiver {
	return &MinioArchiver{client: client, bucket: bucket}
}

// ObjectName returns the object path for a slot generation.
func ObjectName(key models.CacheKey, itemType models.ItemType, slot *models.Slot) string {
	section, period := key.Split()
	stamp := slot.GeneratedAt.UTC().Format("20060102T150405.000000000Z")
	return path.Join("snapshots", string(section), string(period), string(itemType), stamp+".json")
}

// Archive uploads the slot as JSON.
func (a *MinioArchiver) Archive(ctx context.Context, key models.CacheKey, itemType models.ItemType, slot *models.Slot) error {
	if slot == nil {
		return nil
	}
	section, period := key.Split()
	data, err := json.Marshal(Snapshot{Key: key, Section: section, Period: period, ItemType: itemType, Slot: slot})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s/%s: %w", key, itemType, err)
	}
	name := ObjectName(key, itemType, slot)
	_, err = a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket is a Bucket backed by Google Cloud Storage.
type GCSBucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSBucket opens bucketName. With an empty credentialsFile the
// application default credentials are used.
func NewGCSBucket(ctx context.Context, bucketName, credentialsFile string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSBucket{client: client, bucket: client.Bucket(bucketName)}, nil
}

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return objects, nil
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, ObjectInfo{Name: attrs.Name, Updated: attrs.Updated})
	}
}

func (b *GCSBucket) Read(ctx context.Context, name string) ([]byte, error) {
	reader, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (b *GCSBucket) Write(ctx context.Context, name string, data []byte, contentType string) error {
	writer := b.bucket.Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (b *GCSBucket) Copy(ctx context.Context, src, dst string) error {
	_, err := b.bucket.Object(dst).CopierFrom(b.bucket.Object(src)).Run(ctx)
	return err
}

func (b *GCSBucket) Delete(ctx context.Context, name string) error {
	err := b.bucket.Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

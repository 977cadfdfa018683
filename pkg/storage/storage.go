package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorageClient uploads capture artifacts to an S3-compatible store.
type ObjectStorageClient interface {
	Connect(endpoint, accessKeyID, secretAccessKey string, useSSL bool) error
	UploadFile(ctx context.Context, bucketName, objectName, filePath, contentType string) (string, error)
}

// ObjectStorage holds the object storage client instance.
type ObjectStorage struct {
	Conn *minio.Client
}

// NewObjectStorage initialization
func NewObjectStorage() ObjectStorageClient {
	return &ObjectStorage{}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool) error {
	var err error
	o.Conn, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	// Check connection by listing buckets
	if _, err = o.Conn.ListBuckets(context.Background()); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}

	return nil
}

// UploadFile stores the file under bucketName/objectName, creating the bucket
// if needed, and returns a presigned GET URL valid for seven days.
func (o *ObjectStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath, contentType string) (string, error) {
	err := o.Conn.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := o.Conn.BucketExists(ctx, bucketName)
		if !(errBucketExists == nil && exists) {
			return "", fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	_, err = o.Conn.FPutObject(ctx, bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	// Overwrites if same filename already exists
	presignedURL, err := o.Conn.PresignedGetObject(ctx, bucketName, objectName, 7*24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectName, err)
	}

	return presignedURL.String(), nil
}

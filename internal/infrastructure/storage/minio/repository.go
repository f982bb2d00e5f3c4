package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeObjectNotFound, "object not found")

// ObjectRepository stores and retrieves whole objects.
type ObjectRepository interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error)
	Exists(ctx context.Context, bucket, objectKey string) (bool, error)
	GetMetadata(ctx context.Context, bucket, objectKey string) (*ObjectMetadata, error)
	// Get reads an object addressed as s3://bucket/key.
	Get(ctx context.Context, uri string) ([]byte, error)
}

type UploadRequest struct {
	Bucket      string
	ObjectKey   string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket    string
	ObjectKey string
	ETag      string
	Size      int64
}

type DownloadResult struct {
	Data         []byte
	ContentType  string
	Size         int64
	ETag         string
	LastModified time.Time
}

type ObjectMetadata struct {
	ObjectKey    string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type minioRepository struct {
	client *MinIOClient
	logger logging.Logger
}

func NewObjectRepository(client *MinIOClient, log logging.Logger) ObjectRepository {
	return &minioRepository{client: client, logger: logging.OrNop(log).Named("minio.repository")}
}

func (r *minioRepository) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req == nil || req.Bucket == "" || req.ObjectKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "bucket and object key required")
	}
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := api.PutObject(ctx, req.Bucket, req.ObjectKey, bytes.NewReader(req.Data), int64(len(req.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: req.Metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload object").WithDetail(req.Bucket + "/" + req.ObjectKey)
	}

	r.logger.Debug("object uploaded",
		logging.String("bucket", req.Bucket),
		logging.String("key", req.ObjectKey),
		logging.Int64("size", info.Size))
	return &UploadResult{Bucket: info.Bucket, ObjectKey: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

func (r *minioRepository) Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error) {
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	obj, err := api.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, r.translate(err, bucket, objectKey)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, r.translate(err, bucket, objectKey)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to read object").WithDetail(bucket + "/" + objectKey)
	}

	return &DownloadResult{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

func (r *minioRepository) Exists(ctx context.Context, bucket, objectKey string) (bool, error) {
	_, err := r.GetMetadata(ctx, bucket, objectKey)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *minioRepository) GetMetadata(ctx context.Context, bucket, objectKey string) (*ObjectMetadata, error) {
	api, err := r.client.api()
	if err != nil {
		return nil, err
	}
	info, err := api.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return nil, r.translate(err, bucket, objectKey)
	}
	return &ObjectMetadata{
		ObjectKey:    info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func (r *minioRepository) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, ok := ParseURI(uri)
	if !ok {
		return nil, errors.New(errors.ErrCodeValidation, "object location must be s3://bucket/key").WithDetail(uri)
	}
	res, err := r.Download(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (r *minioRepository) translate(err error, bucket, objectKey string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound.WithDetail(bucket + "/" + objectKey)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, "object storage request failed").WithDetail(bucket + "/" + objectKey)
}

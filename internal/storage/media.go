package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/disintegration/imaging"
	"github.com/segmentio/ksuid"

	"rentloop/internal/config"
	"rentloop/internal/model"
)

// MediaStore holds listing images in an S3-compatible bucket.
type MediaStore struct {
	s3Client *s3.Client
	bucket   string
}

// NewMediaStore constructs the S3 client from config.
func NewMediaStore(ctx context.Context, cfg *config.Config) (*MediaStore, error) {
	if cfg.S3Endpoint == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("missing media store configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &MediaStore{
		s3Client: s3Client,
		bucket:   cfg.S3Bucket,
	}, nil
}

// NewImageKey generates a collision-resistant media name. KSUIDs are
// time-prefixed, so names sort by upload time and never rely on locking to
// avoid collision. The bucket folder is an internal layout detail; records
// and clients see the bare name.
func NewImageKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return ksuid.New().String() + ext
}

func objectKey(name string) string {
	return model.ImageFolder + "/" + name
}

// Store validates the upload and writes the bytes under the given key.
func (s *MediaStore) Store(ctx context.Context, key string, r io.Reader, declaredType string, size int64) (*model.MediaObject, error) {
	data, contentType, err := readAndValidateImage(r, declaredType, size)
	if err != nil {
		return nil, err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	return &model.MediaObject{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Open streams an object back by key. The caller must close the reader.
func (s *MediaStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", model.ErrMediaNotFound
		}
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return out.Body, contentType, nil
}

// Delete removes an object by key. Deleting an absent key is not an error,
// so orchestration-level cleanup stays idempotent.
func (s *MediaStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(r io.Reader, declaredType string, size int64) ([]byte, string, error) {
	if size > model.MaxImageSizeBytes {
		return nil, "", model.ErrFileTooLarge
	}

	limitedReader := io.LimitReader(r, model.MaxImageSizeBytes+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > model.MaxImageSizeBytes {
		return nil, "", model.ErrFileTooLarge
	}

	contentType := declaredType
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, "", model.ErrInvalidImageType
	}

	// WebP has no registered decoder, so check the RIFF/WEBP container
	// magic instead of a full decode.
	if contentType == model.ContentTypeWebP {
		if !isWebP(data) {
			return nil, "", model.ErrInvalidImageType
		}
	} else {
		if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
			return nil, "", model.ErrInvalidImageType
		}
	}

	return data, contentType, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

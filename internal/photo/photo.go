package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nuturetable/nuturetable/internal/model"
)

const (
	MaxSize       = 10 << 20
	presignExpiry = 15 * time.Minute
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Recorder persists photo metadata.
type Recorder interface {
	Create(p model.Photo) (*model.Photo, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Uploader stores meal photos in a bucket and records them.
type Uploader struct {
	bucket   string
	client   s3Client
	presign  presigner
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewUploader(cfg S3Config, recorder Recorder, logger *slog.Logger) *Uploader {
	client := newS3Client(cfg)
	return &Uploader{
		bucket:   cfg.Bucket,
		client:   client,
		presign:  s3.NewPresignClient(client),
		recorder: recorder,
		logger:   logger.With("component", "photo"),
		now:      time.Now,
	}
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// ObjectKey builds the storage key for a new photo.
func ObjectKey(userID int64, contentType string, at time.Time) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return fmt.Sprintf("photos/%d/%s/%s%s", userID, at.UTC().Format("2006/01/02"), uuid.NewString(), ext), nil
}

// Upload stores body and returns the recorded photo with a short-lived
// download URL. mealID may be nil for a photo taken before the meal is saved.
func (u *Uploader) Upload(ctx context.Context, userID int64, mealID *string, contentType string, size int64, body io.Reader) (*model.Photo, error) {
	if size > MaxSize {
		return nil, ErrTooLarge
	}
	key, err := ObjectKey(userID, contentType, u.now())
	if err != nil {
		return nil, err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	p, err := u.recorder.Create(model.Photo{
		UserID:      userID,
		MealID:      mealID,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        size,
	})
	if err != nil {
		if _, derr := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(key),
		}); derr != nil {
			u.logger.Error("orphaned object", "key", key, "error", derr)
		}
		return nil, err
	}

	p.URL, err = u.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// URL returns a presigned GET URL for key.
func (u *Uploader) URL(ctx context.Context, key string) (string, error) {
	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"chatrelay/internal/pkg/randx"
)

const contentMIMEType = "text/plain; charset=utf-8"

// S3Config holds the settings required to reach the content bucket.
type S3Config struct {
	BucketName      string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3ContentStore implements ContentStore against an S3-compatible bucket,
// one object per message id.
type S3ContentStore struct {
	cfg      S3Config
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3ContentStore initializes the S3 client with a custom endpoint so
// S3-compatible stores (MinIO, R2) work alongside AWS itself.
func NewS3ContentStore(ctx context.Context, cfg S3Config) (*S3ContentStore, error) {
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store configuration: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3ContentStore{
		cfg:      cfg,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put writes the content object for a message id. Re-putting the same id
// overwrites, which makes retries and edits idempotent per id.
func (s *S3ContentStore) Put(ctx context.Context, messageID string, text string) error {
	key := randx.ContentKey(messageID)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.cfg.BucketName,
		Key:         &key,
		Body:        strings.NewReader(text),
		ContentType: aws.String(contentMIMEType),
	})

	if err != nil {
		return fmt.Errorf("put message content %s: %w", messageID, err)
	}

	return nil
}

// Get reads the content object for a message id.
func (s *S3ContentStore) Get(ctx context.Context, messageID string) (string, error) {
	key := randx.ContentKey(messageID)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.cfg.BucketName,
		Key:    &key,
	})

	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", ErrContentNotFound
		}
		return "", fmt.Errorf("get message content %s: %w", messageID, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read message content %s: %w", messageID, err)
	}

	return string(body), nil
}

// Delete removes the content object. S3 deletes are no-ops for missing keys,
// which keeps tombstoning idempotent.
func (s *S3ContentStore) Delete(ctx context.Context, messageID string) error {
	key := randx.ContentKey(messageID)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.BucketName,
		Key:    &key,
	})

	if err != nil {
		return fmt.Errorf("delete message content %s: %w", messageID, err)
	}

	return nil
}

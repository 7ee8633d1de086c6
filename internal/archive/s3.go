// Package archive keeps a copy of every uploaded PDF in an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/constants"
)

type Config struct {
	Endpoint  string // empty for AWS; set for R2, MinIO and similar
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string // default "uploads"
}

// objectPutter is the part of *s3.Client the archiver uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewS3Archiver builds an S3 client. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain applies.
func NewS3Archiver(ctx context.Context, cfg Config, logger *zap.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, cfg, logger), nil
}

func newS3Archiver(client objectPutter, cfg Config, logger *zap.Logger) *S3Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "uploads"
	}
	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
		logger: logger,
	}
}

// Key is <prefix>/YYYY/MM/DD/<sha256>.pdf in UTC.
func (a *S3Archiver) Key(sha256Hex string) string {
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), sha256Hex+".pdf")
}

// Archive uploads data under its content hash and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, sha256Hex string, data []byte) (string, error) {
	key := a.Key(sha256Hex)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(constants.MediaTypePDF),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{"sha256": sha256Hex},
	})
	if err != nil {
		a.logger.Warn("archive.put.failed", zap.String("bucket", a.bucket), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	a.logger.Debug("archive.put.ok", zap.String("bucket", a.bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

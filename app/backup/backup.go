package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const contentType = "application/vnd.sqlite3"

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	Prefix          string
	AccessKeyID     string // optional, falls back to the default credentials chain
	SecretAccessKey string
	PathStyle       bool
}

type Snapshotter interface {
	Snapshot(ctx context.Context, dest string) error
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS configuration chain,
// overridden by whatever cfg sets explicitly.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Backup uploads point-in-time copies of the donation store to a bucket.
type Backup struct {
	db     Snapshotter
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func New(db Snapshotter, client ObjectPutter, cfg Config) (*Backup, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup bucket is required")
	}
	return &Backup{
		db:     db,
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// Run snapshots the store and uploads it, returning the object key.
func (b *Backup) Run(ctx context.Context) (string, error) {
	startTime := time.Now()

	tempDir, err := os.MkdirTemp("", "donation-relay-backup-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	snapshotPath := filepath.Join(tempDir, "donations.db")
	if err := b.db.Snapshot(ctx, snapshotPath); err != nil {
		return "", err
	}

	file, err := os.Open(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	key := b.Key()
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to s3://%s/%s: %w", b.bucket, key, err)
	}

	slog.Info("Backup uploaded", "bucket", b.bucket, "key", key, "size", info.Size(), "duration", time.Since(startTime))
	return key, nil
}

// Key names the object for a snapshot taken now.
func (b *Backup) Key() string {
	name := fmt.Sprintf("donations-%s.db", b.now().UTC().Format("20060102T150405Z"))
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

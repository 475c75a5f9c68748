package s3source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/geodata-harvester/pkg/fileutil"
)

// DefaultPartSize is the range size of multipart downloads.
const DefaultPartSize = 16 * 1024 * 1024

// objectStore is the subset of S3 used by Source.
type objectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Download(ctx context.Context, bucket, key, dest string) (int64, error)
}

// Client lists and downloads objects with the AWS SDK. Downloads go through
// the S3 download manager for parallel range requests.
type Client struct {
	s3Client   *s3.Client
	downloader *manager.Downloader
}

// NewClient loads the default AWS configuration, overriding the region when
// one is given.
func NewClient(ctx context.Context, region string) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a client from an existing AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	c := s3.NewFromConfig(cfg)
	return &Client{
		s3Client: c,
		downloader: manager.NewDownloader(c, func(d *manager.Downloader) {
			d.PartSize = DefaultPartSize
			d.BufferProvider = manager.NewPooledBufferedWriterReadFromProvider(DefaultPartSize)
		}),
	}
}

// List returns every key under prefix.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Open streams one object.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// Download writes one object to dest through a temporary file, so dest
// only ever holds a complete object.
func (c *Client) Download(ctx context.Context, bucket, key, dest string) (int64, error) {
	var n int64
	err := fileutil.WriteTmpThenMove(filepath.Dir(dest), dest, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create destination file: %w", err)
		}
		defer f.Close()
		n, err = c.downloader.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
		}
		return nil
	})
	return n, err
}

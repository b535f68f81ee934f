package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrRemoteTransfer indicates an upload or download failure. It is always
// recoverable: the reconciliation and push boundaries report it, clean the
// staging directory, and leave local state unchanged.
var ErrRemoteTransfer = errors.New("remote transfer failed")

// Transfer moves note files between the staging directory and the remote
// copy. Both operations side-effect only through the staging directory,
// which holds files named "{title}.txt".
type Transfer interface {
	// Upload transfers every file currently in the staging directory to
	// the remote copy.
	Upload(ctx context.Context) error

	// Download materializes the remote copy's files into the staging
	// directory.
	Download(ctx context.Context) error
}

// S3Transfer implements Transfer against an S3 bucket. Objects are keyed
// by staging filename under an optional prefix.
type S3Transfer struct {
	client     *s3.Client
	bucket     string
	prefix     string
	stagingDir string
}

// NewS3Transfer builds an S3-backed transfer using the ambient AWS
// credential chain.
func NewS3Transfer(ctx context.Context, bucket, region, prefix, stagingDir string) (*S3Transfer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &S3Transfer{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		prefix:     prefix,
		stagingDir: stagingDir,
	}, nil
}

// Upload implements Transfer.Upload.
func (t *S3Transfer) Upload(ctx context.Context) error {
	entries, err := os.ReadDir(t.stagingDir)
	if err != nil {
		return fmt.Errorf("%w: failed to read staging directory: %v", ErrRemoteTransfer, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(t.stagingDir, entry.Name())
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: failed to open %s: %v", ErrRemoteTransfer, path, err)
		}

		_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(t.bucket),
			Key:    aws.String(t.prefix + entry.Name()),
			Body:   file,
		})
		file.Close()
		if err != nil {
			return fmt.Errorf("%w: failed to upload %s: %v", ErrRemoteTransfer, entry.Name(), err)
		}
	}

	return nil
}

// Download implements Transfer.Download.
func (t *S3Transfer) Download(ctx context.Context) error {
	if err := os.MkdirAll(t.stagingDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create staging directory: %v", ErrRemoteTransfer, err)
	}

	list, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.prefix),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to list remote objects: %v", ErrRemoteTransfer, err)
	}

	for _, obj := range list.Contents {
		key := aws.ToString(obj.Key)
		name := strings.TrimPrefix(key, t.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}

		resp, err := t.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(t.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to download %s: %v", ErrRemoteTransfer, key, err)
		}

		file, err := os.Create(filepath.Join(t.stagingDir, name))
		if err != nil {
			resp.Body.Close()
			return fmt.Errorf("%w: failed to create %s: %v", ErrRemoteTransfer, name, err)
		}

		_, err = file.ReadFrom(resp.Body)
		resp.Body.Close()
		file.Close()
		if err != nil {
			return fmt.Errorf("%w: failed to write %s: %v", ErrRemoteTransfer, name, err)
		}
	}

	return nil
}

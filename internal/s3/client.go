// Package s3 mirrors finished outputs to an S3-compatible bucket. The
// archive is optional; the pipeline works entirely on the local
// filesystem and uploads are best-effort.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"watermarkd/internal"
)

type Archiver interface {
	PutFile(ctx context.Context, localPath string) (string, error)
	PutBytes(ctx context.Context, key string, b []byte, contentType string) error
}

type archiver struct {
	bucket string
	prefix string
	api    *awss3.Client
	upl    *manager.Uploader
}

func New(cfg internal.Config) (Archiver, error) {
	endpoint := cfg.S3Endpoint
	forcePathStyle := true
	if strings.Contains(endpoint, "amazonaws.com") {
		forcePathStyle = false
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = &endpoint
	})

	return &archiver{
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
		api:    client,
		upl:    manager.NewUploader(client),
	}, nil
}

// PutFile streams one finished output to the bucket under the
// configured prefix and returns the object key.
func (a *archiver) PutFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open for archive: %w", err)
	}
	defer f.Close()

	key := path.Join(a.prefix, filepath.Base(localPath))
	ct := contentTypeFor(localPath)
	_, err = a.upl.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &ct,
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

func (a *archiver) PutBytes(ctx context.Context, key string, b []byte, contentType string) error {
	_, err := a.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	return err
}

func contentTypeFor(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

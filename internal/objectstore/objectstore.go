// Package objectstore implements the ObjectStore component against an
// S3-compatible bucket, following the session/config construction used by
// the registry's s3-aws storage driver.
package objectstore

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/gdelt-collective/ingest/ingest"
)

// Config carries the connection parameters for the destination bucket.
type Config struct {
	Endpoint       string
	Bucket         string
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	Secure         bool
}

// Store uploads extracted archive members to an S3-compatible bucket and
// synthesizes the public URL each object is reachable at.
type Store struct {
	s3     *s3.S3
	bucket string
	base   string
}

// New builds a Store and verifies the configured bucket exists, creating it
// if it does not (§4.4: the worker fails fast at startup rather than
// discovering a missing bucket mid-pipeline).
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsConfig := aws.NewConfig().
		WithRegion(cfg.Region).
		WithS3ForcePathStyle(cfg.ForcePathStyle).
		WithDisableSSL(!cfg.Secure)

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("objectstore: new session: %w", err)
	}

	s := &Store{
		s3:     s3.New(sess),
		bucket: cfg.Bucket,
		base:   strings.TrimSuffix(cfg.Endpoint, "/"),
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	_, err := s.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	aerr, ok := err.(awserr.Error)
	if !ok || (aerr.Code() != s3.ErrCodeNoSuchBucket && aerr.Code() != "NotFound") {
		return ingest.StorageError{Op: "headbucket", Object: s.bucket, Cause: err}
	}

	if _, err := s.s3.CreateBucketWithContext(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return ingest.StorageError{Op: "createbucket", Object: s.bucket, Cause: err}
	}
	return nil
}

// Put uploads the file at localPath under objectName and returns its public
// URL. The file is streamed, not buffered: content length is the file size
// (§4.4), and the upload body is the open file handle itself.
func (s *Store) Put(ctx context.Context, objectName, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", ingest.StorageError{Op: "open", Object: objectName, Cause: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", ingest.StorageError{Op: "stat", Object: objectName, Cause: err}
	}

	_, err = s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectName),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(objectName)),
	})
	if err != nil {
		return "", ingest.StorageError{Op: "putobject", Object: objectName, Cause: err}
	}
	return s.url(objectName), nil
}

// Delete removes the named object, used to roll back a partially uploaded
// archive when a later member fails (I1 corollary: no partial archive is
// ever left committed).
func (s *Store) Delete(ctx context.Context, objectName string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return ingest.StorageError{Op: "deleteobject", Object: objectName, Cause: err}
	}
	return nil
}

func (s *Store) url(objectName string) string {
	if s.base == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, objectName)
	}
	return fmt.Sprintf("%s/%s/%s", s.base, s.bucket, objectName)
}

func contentType(objectName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(objectName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

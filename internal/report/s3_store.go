package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the slice of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps report documents in an S3 bucket, one object per run.
type S3Store struct {
	client S3API
	bucket string
	now    func() time.Time
}

// NewS3Store creates a new S3Store instance.
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket, now: time.Now}
}

// Write stores the report document under a dated, run-scoped key.
func (s *S3Store) Write(ctx context.Context, runID string, doc []byte) error {
	key := s.key(runID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("report: store document in S3: %w", err)
	}
	return nil
}

// Fetch retrieves a previously stored report document by run ID and date.
func (s *S3Store) Fetch(ctx context.Context, date, runID string) ([]byte, error) {
	key := fmt.Sprintf("reports/%s/%s.json", date, runID)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("report: fetch document from S3: %w", err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

func (s *S3Store) key(runID string) string {
	return fmt.Sprintf("reports/%s/%s.json", s.now().UTC().Format("2006-01-02"), runID)
}

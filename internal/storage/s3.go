package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"content-encryption-service/internal/domain"
)

// S3Store はAmazon S3上のブロブストレージ。
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3Store は既存のS3クライアントからS3Storeを生成する。
func NewS3Store(client *s3.Client, bucket, prefix string, timeout time.Duration) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: timeout,
	}
}

// NewS3Client はデフォルトの資格情報チェーンからS3クライアントを生成する。
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Read はオブジェクトを読み込む。存在しない場合はErrStorageReadFailed。
func (s *S3Store) Read(ctx context.Context, blobPath string) ([]byte, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(blobPath)),
	})
	if err != nil {
		if terr := timeoutErr(ctx, err); terr != nil {
			return nil, terr
		}
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStorageReadFailed, blobPath)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		if terr := timeoutErr(ctx, err); terr != nil {
			return nil, terr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}
	return data, nil
}

// Write はオブジェクトを書き込み、格納先パスを返す。
func (s *S3Store) Write(ctx context.Context, blobPath string, data []byte) (string, error) {
	ctx, cancel := opContext(ctx, s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(blobPath)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		if terr := timeoutErr(ctx, err); terr != nil {
			return "", terr
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}
	return blobPath, nil
}

func (s *S3Store) key(blobPath string) string {
	if s.prefix == "" {
		return blobPath
	}
	return path.Join(s.prefix, blobPath)
}

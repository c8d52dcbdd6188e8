package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Options はS3互換ストレージ（AWS S3 / MinIO等）への接続設定。
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // 空の場合はAWSのデフォルトエンドポイント
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // オブジェクトキーの共通プレフィックス（例: "uploads/"）
	PublicBaseURL   string // 取得用URLのベース（CDN・公開バケットのURL）
}

// s3API はS3Blobsが使用するS3クライアントの操作。テストで差し替える。
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Blobs はS3互換オブジェクトストレージにBlobを保存するBlobStore実装。
type S3Blobs struct {
	client  s3API
	bucket  string
	prefix  string
	baseURL string
}

// NewS3Blobs はS3Optionsからクライアントを構築してS3Blobsを生成する。
// AccessKeyIDが空の場合はSDKのデフォルト認証情報チェーンを使用する。
func NewS3Blobs(ctx context.Context, opts S3Options) (*S3Blobs, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Blobs(client, opts), nil
}

func newS3Blobs(client s3API, opts S3Options) *S3Blobs {
	baseURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultS3BaseURL(opts)
	}
	return &S3Blobs{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		baseURL: baseURL,
	}
}

// Put はオブジェクトを書き込む。If-None-Match: * を付与し既存オブジェクトを上書きしない。
func (b *S3Blobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.prefix + key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("%w: %s", ErrBlobExists, key)
		}
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Delete はオブジェクトを削除する。S3は存在しないキーの削除も成功扱いとする。
func (b *S3Blobs) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// List はプレフィックス配下のオブジェクトをページングしながらすべて返す。
// 返すキーからはプレフィックスを取り除く。
func (b *S3Blobs) List(ctx context.Context) ([]BlobInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	}
	if b.prefix != "" {
		input.Prefix = aws.String(b.prefix)
	}

	var blobs []BlobInfo
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if key == "" || strings.Contains(key, "/") {
				continue
			}
			blobs = append(blobs, BlobInfo{Key: key, Modified: aws.ToTime(obj.LastModified)})
		}
	}
	return blobs, nil
}

// URL は "{baseURL}/{prefix}{key}" 形式の取得URLを返す。
func (b *S3Blobs) URL(key string) string {
	return b.baseURL + "/" + b.prefix + url.PathEscape(key)
}

// defaultS3BaseURL は公開URLが未指定の場合のバケットURLを組み立てる。
func defaultS3BaseURL(opts S3Options) string {
	if opts.Endpoint != "" {
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

var _ BlobStore = (*S3Blobs)(nil)

// Package storage はペット写真の保存機能を提供する。
//
// 写真はS3互換オブジェクトストレージ（AWS S3またはMinIO）に保存され、
// fotos_mascotas/{userID}/{uuid} 形式のキーで管理される。
// 閲覧には有効期限付きの署名付きGET URLを発行する。
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// keyPrefix はペット写真のオブジェクトキーの接頭辞。
const keyPrefix = "fotos_mascotas"

// PhotoStoreService は写真ストレージ機能のインターフェースを定義する。
type PhotoStoreService interface {
	// Upload は写真をアップロードし、発行したオブジェクトキーを返す。
	// キーは fotos_mascotas/{userID}/{uuid} 形式で生成される。
	Upload(ctx context.Context, userID string, contentType string, body io.Reader) (string, error)

	// PresignedGetURL は指定キーの写真を閲覧するための署名付きGET URLを発行する。
	// 空のキーには空文字列を返す（写真なしの掲載を表す）。
	PresignedGetURL(ctx context.Context, key string) (string, error)

	// Delete は指定キーの写真を削除する。
	// 空のキーは何もせず成功として扱う。
	Delete(ctx context.Context, key string) error
}

// s3ObjectAPI はS3クライアントのうち写真ストアが使用する操作のサブセット。
// テストではモック実装に差し替える。
type s3ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3PresignAPI はS3署名クライアントのうち写真ストアが使用する操作のサブセット。
type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config はS3互換ストレージへの接続設定。
type S3Config struct {
	Region    string
	Endpoint  string // MinIO等の互換ストレージを使う場合のみ指定。空ならAWSの既定エンドポイント。
	AccessKey string
	SecretKey string
	Bucket    string
	// PresignTTL は署名付きURLの有効期間。
	PresignTTL time.Duration
}

// s3PhotoStore はPhotoStoreServiceのS3実装。
type s3PhotoStore struct {
	client     s3ObjectAPI
	presigner  s3PresignAPI
	bucket     string
	presignTTL time.Duration
}

// NewS3PhotoStore はS3互換ストレージに接続する写真ストアを生成する。
func NewS3PhotoStore(ctx context.Context, cfg S3Config) (*s3PhotoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIOはバケット名をホスト名に埋め込むvirtual-host形式を解決できないため
			// パス形式でアクセスする。
			o.UsePathStyle = true
		}
	})

	return &s3PhotoStore{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// buildPhotoKey は写真のオブジェクトキーを生成する。
func buildPhotoKey(userID string) string {
	return fmt.Sprintf("%s/%s/%s", keyPrefix, userID, uuid.New())
}

// Upload は写真をアップロードし、発行したオブジェクトキーを返す。
func (s *s3PhotoStore) Upload(ctx context.Context, userID string, contentType string, body io.Reader) (string, error) {
	key := buildPhotoKey(userID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	return key, nil
}

// PresignedGetURL は指定キーの写真を閲覧するための署名付きGET URLを発行する。
func (s *s3PhotoStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign photo URL: %w", err)
	}

	return req.URL, nil
}

// Delete は指定キーの写真を削除する。
func (s *s3PhotoStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	return nil
}

// compile-time interface check
var _ PhotoStoreService = (*s3PhotoStore)(nil)

package storage

import (
	"bytes"
	"context"
	"fmt"

	"fashionshop/internal/config"
	"fashionshop/internal/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// InvoiceStore は請求書PDFをMinIOに置く。
type InvoiceStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
}

// NewInvoiceStore はMINIO_ENDPOINTが空ならnilを返す（保存せずに添付だけする）。
func NewInvoiceStore(ctx context.Context, cfg config.Config) (*InvoiceStore, error) {
	if cfg.MinioEndpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info(ctx).Str("bucket", cfg.MinioBucket).Msg("bucket created")
	}

	return &InvoiceStore{
		client:   client,
		bucket:   cfg.MinioBucket,
		endpoint: cfg.MinioEndpoint,
		useSSL:   cfg.MinioUseSSL,
	}, nil
}

func (s *InvoiceStore) PutInvoice(ctx context.Context, orderID int64, pdf []byte) (string, error) {
	name := ObjectName(orderID)
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload invoice %s: %w", name, err)
	}
	return s.url(name), nil
}

func (s *InvoiceStore) url(name string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, name)
}

// 同じ注文で再生成しても上書きしない
func ObjectName(orderID int64) string {
	return fmt.Sprintf("invoices/%d-%s.pdf", orderID, uuid.NewString())
}

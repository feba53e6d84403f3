// Package archive keeps the original workbook of every import in MinIO.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const keyPrefix = "importaciones"

// Config holds the MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Archiver implements core.Archiver.
type Archiver struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

var _ core.Archiver = (*Archiver)(nil)

// New creates an Archiver. Call EnsureBucket before the first Archive.
func New(cfg Config) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Archiver{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Archive uploads data and returns its object key.
func (a *Archiver) Archive(ctx context.Context, id uuid.UUID, fileName, contentType string, data []byte) (string, error) {
	key := ObjectKey(a.now(), id, fileName)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"import-id": id.String()},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return info.Key, nil
}

// ObjectKey builds importaciones/YYYY/MM/DD/<id>-<name> with name reduced
// to a safe base name.
func ObjectKey(at time.Time, id uuid.UUID, fileName string) string {
	return path.Join(keyPrefix, at.UTC().Format("2006/01/02"), id.String()+"-"+safeName(fileName))
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, name)
	if clean == "" || clean == "." || clean == ".." {
		return "archivo"
	}
	return clean
}

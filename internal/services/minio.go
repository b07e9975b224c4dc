package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

const productImagePrefix = "products/"

// MinioImageStore keeps product images in one bucket and serves them from a public base URL.
type MinioImageStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioImageStore builds the store. An empty publicURL falls back to
// http(s)://<endpoint>/<bucket>.
func NewMinioImageStore(client *minio.Client, bucket, publicURL string) *MinioImageStore {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		scheme := "http"
		if client.EndpointURL().Scheme == "https" {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, client.EndpointURL().Host, bucket)
	}
	return &MinioImageStore{client: client, bucket: bucket, baseURL: base}
}

// ImageObjectName returns a collision free object name that keeps the file extension.
func ImageObjectName(filename string) string {
	return productImagePrefix + uuid.NewString() + strings.ToLower(path.Ext(filename))
}

func (s *MinioImageStore) Upload(ctx context.Context, img ImageUpload) (string, error) {
	name := ImageObjectName(img.Filename)
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, img.Body, img.Size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return s.baseURL + "/" + name, nil
}

// Delete removes the object behind a URL returned by Upload.
func (s *MinioImageStore) Delete(ctx context.Context, url string) error {
	key, ok := ObjectKey(s.baseURL, url)
	if !ok {
		return fmt.Errorf("url %s is not served by bucket %s", url, s.bucket)
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// ObjectKey strips the public base URL to recover the object key.
func ObjectKey(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}

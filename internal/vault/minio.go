package vault

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// MinioAPI is the subset of *minio.Client used by MinioVault.
type MinioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// MinioVault stores blobs in a MinIO (or other S3-compatible) bucket.
type MinioVault struct {
	name   string
	client MinioAPI
	bucket string
	prefix string
}

// NewMinioVault creates a vault over an existing MinIO client.
func NewMinioVault(name string, client MinioAPI, bucket, prefix string) *MinioVault {
	return &MinioVault{
		name:   name,
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewMinioVaultFromConfig connects to the configured endpoint with static keys.
func NewMinioVaultFromConfig(cfg config.VaultConfig) (*MinioVault, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("minio vault requires minio_endpoint to be set")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return NewMinioVault(cfg.Name, client, cfg.MinioBucket, cfg.MinioPrefix), nil
}

func (v *MinioVault) key(name string) string {
	return path.Join(v.prefix, name)
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put streams r into a single object.
func (v *MinioVault) Put(ctx context.Context, name string, r io.Reader) error {
	if _, err := v.client.PutObject(ctx, v.bucket, v.key(name), r, -1, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Stat returns the size and modification time of an object.
func (v *MinioVault) Stat(ctx context.Context, name string) (model.BlobInfo, error) {
	info, err := v.client.StatObject(ctx, v.bucket, v.key(name), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return model.BlobInfo{}, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
		}
		return model.BlobInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return model.BlobInfo{Name: name, SizeBytes: info.Size, ModifiedAt: info.LastModified.UTC()}, nil
}

// Open streams an object. The object is checked first because GetObject is
// lazy and would only report a missing key on the first read.
func (v *MinioVault) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := v.Stat(ctx, name); err != nil {
		return nil, err
	}
	obj, err := v.client.GetObject(ctx, v.bucket, v.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return obj, nil
}

// Delete removes an object. Missing objects are ignored.
func (v *MinioVault) Delete(ctx context.Context, name string) error {
	err := v.client.RemoveObject(ctx, v.bucket, v.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// List returns the names of the objects directly under the prefix.
func (v *MinioVault) List(ctx context.Context) ([]string, error) {
	prefix := ""
	if v.prefix != "" {
		prefix = v.prefix + "/"
	}

	var names []string
	for obj := range v.client.ListObjects(ctx, v.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s: %w", v.bucket, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup checks that the bucket exists.
func (v *MinioVault) ValidateSetup(ctx context.Context) error {
	if v.bucket == "" {
		return fmt.Errorf("minio vault requires minio_bucket to be set")
	}
	ok, err := v.client.BucketExists(ctx, v.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket %s not accessible: %w", v.bucket, err)
	}
	if !ok {
		return fmt.Errorf("minio bucket %s does not exist", v.bucket)
	}
	return nil
}

var _ gallery.Vault = (*MinioVault)(nil)

package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"gallery-go/internal/config"
	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// S3API is the subset of the S3 client used by S3Vault.
type S3API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Vault stores blobs as objects under a key prefix in an S3 bucket.
// A PUT is atomic on S3, so a failed upload never leaves a partial object.
type S3Vault struct {
	name     string
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Vault creates a vault over an existing S3 client.
func NewS3Vault(name string, client S3API, bucket, prefix string) *S3Vault {
	return &S3Vault{
		name:     name,
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// NewS3VaultFromConfig builds an S3 client from the default AWS credential chain,
// or from static keys if the config carries them.
func NewS3VaultFromConfig(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Vault(cfg.Name, client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func (v *S3Vault) key(name string) string {
	return path.Join(v.prefix, name)
}

func (v *S3Vault) listPrefix() string {
	if v.prefix == "" {
		return ""
	}
	return v.prefix + "/"
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

// Put uploads r as a single object.
func (v *S3Vault) Put(ctx context.Context, name string, r io.Reader) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

// Stat returns the size and modification time of an object.
func (v *S3Vault) Stat(ctx context.Context, name string) (model.BlobInfo, error) {
	head, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return model.BlobInfo{}, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
		}
		return model.BlobInfo{}, fmt.Errorf("head %s: %w", name, err)
	}
	info := model.BlobInfo{Name: name, SizeBytes: aws.ToInt64(head.ContentLength)}
	if head.LastModified != nil {
		info.ModifiedAt = head.LastModified.UTC()
	}
	return info, nil
}

// Open streams an object.
func (v *S3Vault) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", gallery.ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 deletes are idempotent.
func (v *S3Vault) Delete(ctx context.Context, name string) error {
	_, err := v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.key(name)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// List returns the names of the objects directly under the prefix.
func (v *S3Vault) List(ctx context.Context) ([]string, error) {
	prefix := v.listPrefix()
	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(prefix),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", v.bucket, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if v.bucket == "" {
		return fmt.Errorf("s3 vault requires s3_bucket to be set")
	}
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

var _ gallery.Vault = (*S3Vault)(nil)

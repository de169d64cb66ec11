package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"gallery-go/internal/gallery"
)

// fakeS3 is an in-memory S3API. Multipart calls are rejected; the uploader
// only uses them for bodies larger than one part.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified time.Time
	bucket   string
	pageSize int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		objects:  make(map[string][]byte),
		modified: time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC),
		bucket:   bucket,
		pageSize: 1000,
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(f.modified),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Vault_Contract(t *testing.T) {
	testVaultContract(t, func(t *testing.T) gallery.Vault {
		return NewS3Vault("test", newFakeS3("photos"), "photos", "phone/")
	})
}

func TestS3Vault_KeysUnderPrefix(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("photos")
	v := NewS3Vault("test", client, "photos", "/phone/")

	require.NoError(t, v.Put(ctx, "a.jpg", strings.NewReader("abc")))
	require.Contains(t, client.objects, "phone/a.jpg")

	info, err := v.Stat(ctx, "a.jpg")
	require.NoError(t, err)
	require.Equal(t, int64(3), info.SizeBytes)
	require.Equal(t, client.modified, info.ModifiedAt)
}

func TestS3Vault_ListSkipsNestedAndForeignKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("photos")
	client.objects["phone/b.jpg"] = []byte("b")
	client.objects["phone/a.jpg"] = []byte("a")
	client.objects["phone/thumbs/a.jpg"] = []byte("t")
	client.objects["tablet/c.jpg"] = []byte("c")
	v := NewS3Vault("test", client, "photos", "phone")

	names, err := v.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.jpg", "b.jpg"}, names)
}

func TestS3Vault_ListPaginates(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("photos")
	client.pageSize = 2
	for _, k := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		client.objects[k] = []byte(k)
	}
	v := NewS3Vault("test", client, "photos", "")

	names, err := v.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}, names)
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, NewS3Vault("test", newFakeS3("photos"), "photos", "").ValidateSetup(ctx))
	require.Error(t, NewS3Vault("test", newFakeS3("photos"), "other", "").ValidateSetup(ctx))
	require.Error(t, NewS3Vault("test", newFakeS3("photos"), "", "").ValidateSetup(ctx))
}

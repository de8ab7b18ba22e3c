package awss3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"fileshelf/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	objects   map[string]string
	bucketOK  bool
	putErr    error
	deleteErr error
	created   bool
	lastPut   *s3.PutObjectInput
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string]string{}, bucketOK: true}
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeAPI) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketOK {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{}, nil
}

func (f *fakeAPI) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = true
	f.bucketOK = true
	return &s3.CreateBucketOutput{}, nil
}

func TestPut_ConditionalWrite(t *testing.T) {
	api := newFakeAPI()
	s := NewWithAPI(api, Config{Bucket: "files", Region: "eu-west-1"})
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "1_abc_a.txt", strings.NewReader("hello"), 5, "text/plain"))
	assert.Equal(t, "*", aws.ToString(api.lastPut.IfNoneMatch))
	assert.Equal(t, int64(5), aws.ToInt64(api.lastPut.ContentLength))
	assert.Equal(t, "max-age=3600", aws.ToString(api.lastPut.CacheControl))

	err := s.Put(ctx, "1_abc_a.txt", strings.NewReader("again"), 5, "text/plain")
	require.ErrorIs(t, err, storage.ErrObjectExists)
	assert.Equal(t, "hello", api.objects["1_abc_a.txt"])
}

func TestPut_MissingBucket(t *testing.T) {
	api := newFakeAPI()
	api.putErr = &smithy.GenericAPIError{Code: "NoSuchBucket"}
	s := NewWithAPI(api, Config{Bucket: "files"})

	err := s.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, storage.ErrBucketMissing)
	assert.Equal(t, "application/octet-stream", aws.ToString(api.lastPut.ContentType))
}

func TestDelete_IdempotentAndErrors(t *testing.T) {
	api := newFakeAPI()
	s := NewWithAPI(api, Config{Bucket: "files"})
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "absent"))

	api.deleteErr = &smithy.GenericAPIError{Code: "NoSuchKey"}
	require.NoError(t, s.Delete(ctx, "absent"))

	api.deleteErr = errors.New("timeout")
	require.Error(t, s.Delete(ctx, "k"))
}

func TestOpen_NotFound(t *testing.T) {
	s := NewWithAPI(newFakeAPI(), Config{Bucket: "files"})
	_, err := s.Open(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestProbeAndEnsureContainer(t *testing.T) {
	api := newFakeAPI()
	api.bucketOK = false
	s := NewWithAPI(api, Config{Bucket: "files", Region: "eu-west-1"})
	ctx := context.Background()

	require.ErrorIs(t, s.Probe(ctx), storage.ErrBucketMissing)
	require.NoError(t, s.EnsureContainer(ctx))
	assert.True(t, api.created)
	require.NoError(t, s.Probe(ctx))
}

func TestPublicURL(t *testing.T) {
	s := NewWithAPI(newFakeAPI(), Config{Bucket: "files", Region: "eu-west-1"})
	assert.Equal(t, "https://files.s3.eu-west-1.amazonaws.com/k.txt", s.PublicURL("k.txt"))

	s = NewWithAPI(newFakeAPI(), Config{Bucket: "files", Endpoint: "http://127.0.0.1:9000/"})
	assert.Equal(t, "http://127.0.0.1:9000/files/k.txt", s.PublicURL("k.txt"))
}

package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      bool
	policy          string
	policyErr       error

	putErr         error
	putKey         string
	putSize        int64
	putContentType string
	putBody        string

	removeErr error
	removed   string

	statErr error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = true
	return f.makeBucketErr
}
func (f *fakeMinio) SetBucketPolicy(_ context.Context, _ string, policy string) error {
	f.policy = policy
	return f.policyErr
}
func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, r io.Reader, size int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putKey, f.putSize, f.putContentType = key, size, opts.ContentType
	body, _ := io.ReadAll(r)
	f.putBody = string(body)
	return minioLib.UploadInfo{Key: key, Size: size}, f.putErr
}
func (f *fakeMinio) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	f.removed = key
	return f.removeErr
}
func (f *fakeMinio) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func TestNewClientWithAPI_BucketExists(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := NewClientWithAPI(context.Background(), api, "b", "http://cdn")
	require.NoError(t, err)
	assert.Equal(t, "b", c.bucket)
	assert.False(t, api.madeBucket)
	assert.Empty(t, api.policy)
}

func TestNewClientWithAPI_CreateBucket(t *testing.T) {
	api := &fakeMinio{}
	_, err := NewClientWithAPI(context.Background(), api, "avatars", "http://cdn")
	require.NoError(t, err)
	assert.True(t, api.madeBucket)
	assert.Contains(t, api.policy, "arn:aws:s3:::avatars/*")
}

func TestNewClientWithAPI_Errors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeMinio
		want string
	}{
		{name: "exists check", api: &fakeMinio{bucketExistsErr: errors.New("boom")}, want: "failed to check bucket existence"},
		{name: "make bucket", api: &fakeMinio{makeBucketErr: errors.New("fail")}, want: "failed to create bucket"},
		{name: "policy", api: &fakeMinio{policyErr: errors.New("denied")}, want: "failed to set bucket policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClientWithAPI(context.Background(), tt.api, "bucket", "http://cdn")
			assert.Nil(t, c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClient_Upload(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := NewClientWithAPI(context.Background(), api, "bucket", "http://cdn")
	require.NoError(t, err)

	require.NoError(t, c.Upload(context.Background(), "avatar/1.png", strings.NewReader("data"), 4, "image/png"))
	assert.Equal(t, "avatar/1.png", api.putKey)
	assert.Equal(t, int64(4), api.putSize)
	assert.Equal(t, "image/png", api.putContentType)
	assert.Equal(t, "data", api.putBody)

	api.putErr = errors.New("disk full")
	err = c.Upload(context.Background(), "k", strings.NewReader(""), 0, "image/png")
	assert.ErrorContains(t, err, "failed to upload object")
}

func TestClient_DeleteAndExists(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := NewClientWithAPI(context.Background(), api, "bucket", "http://cdn")
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "avatar/1.png"))
	assert.Equal(t, "avatar/1.png", api.removed)

	ok, err := c.Exists(context.Background(), "avatar/1.png")
	require.NoError(t, err)
	assert.True(t, ok)

	api.statErr = minioLib.ErrorResponse{Code: "NoSuchKey"}
	ok, err = c.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	api.statErr = errors.New("network")
	_, err = c.Exists(context.Background(), "x")
	assert.ErrorContains(t, err, "failed to stat object")
}

func TestClient_URL(t *testing.T) {
	c, err := NewClientWithAPI(context.Background(), &fakeMinio{bucketExists: true}, "bucket", "https://cdn.example.com/")
	require.NoError(t, err)

	url := c.URL("avatar/1.png")
	assert.Equal(t, "https://cdn.example.com/bucket/avatar/1.png", url)

	key, ok := c.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "avatar/1.png", key)

	_, ok = c.KeyFromURL("https://elsewhere/bucket/avatar/1.png")
	assert.False(t, ok)
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubS3API struct {
	putInput    *s3.PutObjectInput
	putErr      error
	deleteInput *s3.DeleteObjectsInput
	deleteOut   *s3.DeleteObjectsOutput
	deleteErr   error
}

func (s *stubS3API) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.putInput = in
	if s.putErr != nil {
		return nil, s.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3API) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	s.deleteInput = in
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	if s.deleteOut != nil {
		return s.deleteOut, nil
	}
	return &s3.DeleteObjectsOutput{}, nil
}

type stubPresigner struct {
	url string
	err error
	key string
}

func (s *stubPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	s.key = aws.ToString(in.Key)
	if s.err != nil {
		return nil, s.err
	}
	return &v4PresignedRequest{URL: s.url}, nil
}

func newTestStorage(api s3API, presigner s3Presigner, publicBase string) *S3Storage {
	return &S3Storage{
		client:        api,
		presigner:     presigner,
		bucket:        "posture-images",
		publicBaseURL: publicBase,
	}
}

func TestPut(t *testing.T) {
	api := &stubS3API{}
	st := newTestStorage(api, &stubPresigner{}, "")

	err := st.Put(context.Background(), "groups/g1/front.jpg",
		bytes.NewReader([]byte("jpeg-bytes")), 10, "image/jpeg")
	require.NoError(t, err)

	require.NotNil(t, api.putInput)
	assert.Equal(t, "posture-images", aws.ToString(api.putInput.Bucket))
	assert.Equal(t, "groups/g1/front.jpg", aws.ToString(api.putInput.Key))
	assert.Equal(t, int64(10), aws.ToInt64(api.putInput.ContentLength))
	assert.Equal(t, "image/jpeg", aws.ToString(api.putInput.ContentType))
}

func TestSignedURL(t *testing.T) {
	presigner := &stubPresigner{url: "https://minio.local/signed?sig=abc"}
	st := newTestStorage(&stubS3API{}, presigner, "")

	url, err := st.SignedURL(context.Background(), "groups/g1/front.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/signed?sig=abc", url)
	assert.Equal(t, "groups/g1/front.jpg", presigner.key)
}

func TestSignedURL_Error(t *testing.T) {
	presigner := &stubPresigner{err: errors.New("signing unavailable")}
	st := newTestStorage(&stubS3API{}, presigner, "")

	_, err := st.SignedURL(context.Background(), "groups/g1/front.jpg", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presigning object")
}

func TestPublicURL(t *testing.T) {
	st := newTestStorage(&stubS3API{}, &stubPresigner{}, "https://cdn.formtrack.example")

	url, err := st.PublicURL("groups/g 1/front.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.formtrack.example/posture-images/groups/g%201/front.jpg", url)
}

func TestPublicURL_NotConfigured(t *testing.T) {
	st := newTestStorage(&stubS3API{}, &stubPresigner{}, "")

	_, err := st.PublicURL("groups/g1/front.jpg")
	assert.ErrorIs(t, err, ErrNoPublicURL)
}

func TestRemove(t *testing.T) {
	api := &stubS3API{}
	st := newTestStorage(api, &stubPresigner{}, "")

	err := st.Remove(context.Background(), "a.jpg", "b.jpg")
	require.NoError(t, err)

	require.NotNil(t, api.deleteInput)
	require.Len(t, api.deleteInput.Delete.Objects, 2)
	assert.Equal(t, "a.jpg", aws.ToString(api.deleteInput.Delete.Objects[0].Key))
	assert.Equal(t, "b.jpg", aws.ToString(api.deleteInput.Delete.Objects[1].Key))
}

func TestRemove_NoKeys(t *testing.T) {
	api := &stubS3API{}
	st := newTestStorage(api, &stubPresigner{}, "")

	err := st.Remove(context.Background())
	require.NoError(t, err)
	assert.Nil(t, api.deleteInput, "no call should be made for an empty key set")
}

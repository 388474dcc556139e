package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(input.Key)] = string(body)
	f.types[aws.StringValue(input.Key)] = aws.StringValue(input.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, input *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	key := aws.StringValue(input.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, input *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.StringValue(input.Key)]; !ok {
		return nil, awserr.New("NotFound", "not found", nil)
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3UploadDeleteExists(t *testing.T) {
	client := newFakeS3()
	store := NewS3WithClient(client, S3Config{Bucket: "docs", Endpoint: "minio:9000"}, zerolog.Nop())
	ctx := context.Background()

	url, err := store.Upload(ctx, "doc.pdf", strings.NewReader("%PDF"), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, "http://minio:9000/docs/doc.pdf", url)
	require.Equal(t, "%PDF", client.objects["doc.pdf"])
	require.Equal(t, "application/pdf", client.types["doc.pdf"])

	exists, err := store.exists(ctx, "doc.pdf")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Delete(ctx, "doc.pdf"))
	require.NoError(t, store.Delete(ctx, "doc.pdf"))

	exists, err = store.exists(ctx, "doc.pdf")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestS3DefaultURL(t *testing.T) {
	store := NewS3WithClient(newFakeS3(), S3Config{Bucket: "docs", Region: "eu-west-3", UseSSL: true}, zerolog.Nop())
	require.Equal(t, "https://docs.s3.eu-west-3.amazonaws.com", store.publicURL)

	custom := NewS3WithClient(newFakeS3(), S3Config{Bucket: "docs", PublicURL: "https://cdn.example.org/"}, zerolog.Nop())
	require.Equal(t, "https://cdn.example.org", custom.publicURL)
}

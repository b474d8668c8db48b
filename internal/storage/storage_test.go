package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	putInput *s3.PutObjectInput
	putErr   error
	headErr  error
}

func (f *fakeClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestUploadBuildsTimestampedKeyAndURL(t *testing.T) {
	client := &fakeClient{}
	u := NewUploader(client, "lab-docs", "ap-south-1", "")

	url, err := u.Upload(context.Background(), "logo.png", "image/png", strings.NewReader("png-bytes"))
	assert.NoError(t, err)

	assert.NotNil(t, client.putInput)
	assert.Equal(t, "lab-docs", *client.putInput.Bucket)
	assert.True(t, strings.HasSuffix(*client.putInput.Key, "-logo.png"))
	assert.Equal(t, "image/png", *client.putInput.ContentType)

	body, err := io.ReadAll(client.putInput.Body)
	assert.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	assert.Equal(t, "https://lab-docs.s3.ap-south-1.amazonaws.com/"+*client.putInput.Key, url)
}

func TestUploadWithCustomEndpoint(t *testing.T) {
	client := &fakeClient{}
	u := NewUploader(client, "lab-docs", "us-east-1", "http://localhost:9000/")

	url, err := u.Upload(context.Background(), "scope.pdf", "application/pdf", strings.NewReader("pdf"))
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/lab-docs/"))
}

func TestUploadPropagatesClientError(t *testing.T) {
	client := &fakeClient{putErr: errors.New("bucket unavailable")}
	u := NewUploader(client, "lab-docs", "us-east-1", "")

	_, err := u.Upload(context.Background(), "logo.png", "", strings.NewReader("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logo.png")
}

func TestPing(t *testing.T) {
	assert.NoError(t, NewUploader(&fakeClient{}, "lab-docs", "us-east-1", "").Ping(context.Background()))
	assert.Error(t, NewUploader(&fakeClient{headErr: errors.New("403")}, "lab-docs", "us-east-1", "").Ping(context.Background()))
}

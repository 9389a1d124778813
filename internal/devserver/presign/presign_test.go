package presign

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/medvolt/scanblur/internal/devserver/config"
)

func testConfig() *config.Config {
	return &config.Config{
		S3Endpoint:  "http://127.0.0.1:9000/",
		S3Region:    "us-east-1",
		S3AccessKey: "admin",
		S3SecretKey: "secret",
		S3Bucket:    "volumes",
		PresignTTL:  15 * time.Minute,
	}
}

func stubPresign(t *testing.T) (putKeys *[]string, getKeys *[]string) {
	t.Helper()

	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		presignPutObject, presignGetObject = origPut, origGet
	})

	var puts, gets []string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		puts = append(puts, aws.ToString(in.Key))
		return &v4.PresignedHTTPRequest{URL: "https://storage.test/put/" + aws.ToString(in.Key)}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gets = append(gets, aws.ToString(in.Key))
		return &v4.PresignedHTTPRequest{URL: "https://storage.test/get/" + aws.ToString(in.Key)}, nil
	}
	return &puts, &gets
}

func TestPresignedPutURL(t *testing.T) {
	puts, _ := stubPresign(t)
	s := NewService(testConfig())

	key, url, err := s.PresignedPutURL(context.Background(), "scan.nii.gz")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(key, "volumes/"))
	require.True(t, strings.HasSuffix(key, ".nii.gz"))
	require.Equal(t, "https://storage.test/put/"+key, url)
	require.Equal(t, []string{key}, *puts)
}

func TestPresignedGetURL(t *testing.T) {
	_, gets := stubPresign(t)
	s := NewService(testConfig())

	url, err := s.PresignedGetURL(context.Background(), "volumes/a/b.nii.gz-blurred")
	require.NoError(t, err)

	require.Equal(t, "https://storage.test/get/volumes/a/b.nii.gz-blurred", url)
	require.Equal(t, []string{"volumes/a/b.nii.gz-blurred"}, *gets)
}

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey("scan.nii.gz")
	require.True(t, strings.HasSuffix(key, ".nii.gz"))

	// Two calls never collide.
	require.NotEqual(t, NewObjectKey("a.nii.gz"), NewObjectKey("a.nii.gz"))

	// No usable hint still yields the expected extension.
	require.True(t, strings.HasSuffix(NewObjectKey(""), ".nii.gz"))
}

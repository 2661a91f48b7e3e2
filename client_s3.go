package boxspiegel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awss3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xorcare/pointer"
)

type S3ClientInterface interface {
	GetObjectContents(ctx context.Context, bucket string, key string) ([]byte, error)
	ListPrefix(ctx context.Context, bucket string, prefix string) (map[string]awss3types.Object, error)
	PutObjectWithContentType(ctx context.Context, bucket string, key string, body io.Reader, contentType string) (*string, error)
	PutObject(ctx context.Context, bucket string, key string, body io.Reader) (*string, error)
	DeleteObject(ctx context.Context, bucket string, key string) error
}

type BoxSpiegelS3Client struct {
	awss3client *awss3.Client
}

func NewS3Client(ctx context.Context, endpoint string, region string) (*BoxSpiegelS3Client, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	if region != "" {
		awscfg.Region = region
	}

	client := awss3.NewFromConfig(awscfg, func(o *awss3.Options) {
		if endpoint != "" {
			const defaultRegion = "us-east-1"
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
			if o.Region == "" {
				o.Region = defaultRegion
			}
		}
	})

	return &BoxSpiegelS3Client{awss3client: client}, nil
}

// GetObjectContents wraps ErrNotFound when the key does not exist.
func (t BoxSpiegelS3Client) GetObjectContents(ctx context.Context, bucket string, key string) ([]byte, error) {
	output, err := t.awss3client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: pointer.String(bucket),
		Key:    pointer.String(key),
	})
	if err != nil {
		var nsk *awss3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("error loading object contents: %w", err)
	}
	defer output.Body.Close()

	contents, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("error loading object contents: %w", err)
	}
	return contents, nil
}

func (t BoxSpiegelS3Client) ListPrefix(ctx context.Context, bucket string, prefix string) (map[string]awss3types.Object, error) {
	var continuationToken *string
	objects := make(map[string]awss3types.Object)
	for {
		input := awss3.ListObjectsV2Input{
			Bucket:            pointer.String(bucket),
			ContinuationToken: continuationToken,
			Prefix:            pointer.String(prefix),
		}
		objectListOutput, err := t.awss3client.ListObjectsV2(ctx, &input)
		if err != nil {
			return nil, fmt.Errorf("error listing objects from S3: %w", err)
		}
		for _, object := range objectListOutput.Contents {
			objects[*object.Key] = object
		}
		if !aws.ToBool(objectListOutput.IsTruncated) {
			break
		}
		continuationToken = objectListOutput.NextContinuationToken
	}

	return objects, nil
}

// PutObjectWithContentType uploads body, which should be seekable (an
// *os.File or *bytes.Reader) so the payload can be signed.
func (t BoxSpiegelS3Client) PutObjectWithContentType(ctx context.Context, bucket string, key string, body io.Reader, contentType string) (*string, error) {
	poi := awss3.PutObjectInput{
		Bucket: pointer.String(bucket),
		Key:    pointer.String(key),
		Body:   body,
	}
	if contentType != "" {
		poi.ContentType = pointer.String(contentType)
	}

	putObjectOutput, err := t.awss3client.PutObject(ctx, &poi)
	if err != nil {
		return nil, err
	}
	return putObjectOutput.ETag, nil
}

func (t BoxSpiegelS3Client) PutObject(ctx context.Context, bucket string, key string, body io.Reader) (*string, error) {
	return t.PutObjectWithContentType(ctx, bucket, key, body, "")
}

func (t BoxSpiegelS3Client) DeleteObject(ctx context.Context, bucket string, key string) error {
	_, err := t.awss3client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: pointer.String(bucket), Key: pointer.String(key)})
	return err
}

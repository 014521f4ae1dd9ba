package common

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Client struct {
	Config *BaseConfig
	S3     *s3.Client
}

// Static credentials when both keys are configured, the default AWS credential chain otherwise
func LoadAwsConfig(ctx context.Context, config *BaseConfig) (aws.Config, error) {
	var awsConfigOptions = []func(*awsConfig.LoadOptions) error{}

	if config.Aws.Region != "" {
		awsConfigOptions = append(awsConfigOptions, awsConfig.WithRegion(config.Aws.Region))
	}

	if config.LogLevel == LOG_LEVEL_TRACE {
		awsConfigOptions = append(awsConfigOptions, awsConfig.WithClientLogMode(aws.LogRequest))
	}

	if config.Aws.AccessKeyId != "" && config.Aws.SecretAccessKey != "" {
		awsCredentials := credentials.NewStaticCredentialsProvider(
			config.Aws.AccessKeyId,
			config.Aws.SecretAccessKey,
			"",
		)
		awsConfigOptions = append(awsConfigOptions, awsConfig.WithCredentialsProvider(awsCredentials))
	}

	return awsConfig.LoadDefaultConfig(ctx, awsConfigOptions...)
}

func NewS3Client(ctx context.Context, config *BaseConfig) (*S3Client, error) {
	loadedAwsConfig, err := LoadAwsConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	s3Endpoint := config.Aws.S3Endpoint
	if s3Endpoint == "" {
		s3Endpoint = DEFAULT_AWS_S3_ENDPOINT
	}

	client := s3.NewFromConfig(loadedAwsConfig, func(o *s3.Options) {
		if IsLocalHost(s3Endpoint) {
			o.BaseEndpoint = aws.String("http://" + s3Endpoint)
		} else {
			o.BaseEndpoint = aws.String("https://" + s3Endpoint)
		}
		if s3Endpoint != DEFAULT_AWS_S3_ENDPOINT {
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		Config: config,
		S3:     client,
	}, nil
}

// The body is streamed in multipart chunks, so its size doesn't have to be known upfront
func (s3Client *S3Client) UploadObject(ctx context.Context, fileKey string, contentType string, body io.Reader) error {
	uploader := manager.NewUploader(s3Client.S3)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3Client.Config.Aws.S3Bucket),
		Key:         aws.String(fileKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket endpoint. Credentials come from the default
// AWS chain (env, shared config, instance role).
type S3Config struct {
	Region    string `yaml:"region" split_words:"true"`
	Endpoint  string `yaml:"endpoint" split_words:"true"` // optional, e.g. MinIO
	PathStyle bool   `yaml:"path_style" split_words:"true"`
}

// ObjectGetter is the slice of the S3 API the opener needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func newS3Getter(ctx context.Context, cfg S3Config) (ObjectGetter, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func getObject(ctx context.Context, g ObjectGetter, bucket, key string) (io.ReadCloser, error) {
	out, err := g.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

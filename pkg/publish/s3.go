package publish

import (
	"context"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds connection settings for S3 and compatible stores.
type S3Config struct {
	Endpoint     string // custom endpoint, e.g. http://localhost:9000
	Region       string
	AccessKey    string // empty uses the default credential chain
	SecretKey    string
	UsePathStyle bool
}

// S3ConfigFromEnv reads QRSHEET_S3_ENDPOINT, AWS_REGION, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and QRSHEET_S3_PATH_STYLE.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:     os.Getenv("QRSHEET_S3_ENDPOINT"),
		Region:       os.Getenv("AWS_REGION"),
		AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UsePathStyle: os.Getenv("QRSHEET_S3_PATH_STYLE") == "true",
	}
}

// S3Uploader uploads with PutObject.
type S3Uploader struct {
	client *s3.Client
}

// NewS3Uploader builds an S3 client from cfg.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &S3Uploader{client: client}, nil
}

// Upload puts r at bucket/object. Create-only uploads send
// If-None-Match: * and map 412 to ErrExists.
func (u *S3Uploader) Upload(ctx context.Context, bucket, object string, r io.Reader, size int64, overwrite bool) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(object),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(ContentType),
	}
	if !overwrite {
		in.IfNoneMatch = aws.String("*")
	}

	_, err := u.client.PutObject(ctx, in)
	if err != nil {
		var sc statusCoder
		if stderrors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: %v", ErrExists, err)
		}
		return err
	}
	return nil
}

// Stat issues a HeadObject. The ETag is used as the MD5 only when it has
// the plain single-part form; multipart and SSE-KMS ETags are not digests.
func (u *S3Uploader) Stat(ctx context.Context, bucket, object string) (ObjectInfo, error) {
	out, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{Size: aws.ToInt64(out.ContentLength)}
	info.MD5 = etagMD5(aws.ToString(out.ETag))
	return info, nil
}

func etagMD5(etag string) []byte {
	etag = strings.Trim(etag, `"`)
	if len(etag) != 2*16 {
		return nil
	}
	sum, err := hex.DecodeString(etag)
	if err != nil {
		return nil
	}
	return sum
}

// Close is a no-op; the SDK client holds no resources that need release.
func (u *S3Uploader) Close() error { return nil }

package workbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/roach88/petlog/internal/sheet"
)

// ObjectAPI is the part of *s3.Client a workbook blob needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// IdentityAPI is the part of *sts.Client used to verify credentials.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// S3Blob keeps the workbook as one object in a bucket.
type S3Blob struct {
	Bucket string
	Key    string

	objects  ObjectAPI
	identity IdentityAPI
}

// NewS3Blob returns a blob over the given clients. identity may be nil.
func NewS3Blob(bucket, key string, objects ObjectAPI, identity IdentityAPI) *S3Blob {
	return &S3Blob{Bucket: bucket, Key: key, objects: objects, identity: identity}
}

func (b *S3Blob) Location() string {
	return "s3://" + b.Bucket + "/" + b.Key
}

func (b *S3Blob) Load(ctx context.Context) ([]byte, error) {
	out, err := b.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(b.Key),
	})
	if err != nil {
		return nil, wrapS3Error(err, "get object")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, sheet.NewUnavailable("get object", fmt.Errorf("read body of %s: %w", b.Location(), err))
	}
	return data, nil
}

func (b *S3Blob) Save(ctx context.Context, data []byte) error {
	_, err := b.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.Bucket),
		Key:         aws.String(b.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
	})
	if err != nil {
		return wrapS3Error(err, "put object")
	}
	return nil
}

// Check calls STS GetCallerIdentity.
func (b *S3Blob) Check(ctx context.Context) error {
	if b.identity == nil {
		return nil
	}
	if _, err := b.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return wrapS3Error(err, "get caller identity")
	}
	return nil
}

// wrapS3Error maps AWS API error codes onto sheet error categories.
func wrapS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return ErrNoBlob
		case "NoSuchBucket":
			return &sheet.Error{Code: sheet.ErrCodeNotFound, Op: operation, Message: "bucket not found", Err: err}
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded",
			"TooManyRequestsException", "RequestThrottled":
			return sheet.NewRateLimited(operation, err)
		default:
			return &sheet.Error{
				Code:    sheet.ErrCodeUnavailable,
				Op:      operation,
				Message: fmt.Sprintf("%s (%s)", apiErr.ErrorMessage(), apiErr.ErrorCode()),
				Err:     err,
			}
		}
	}

	return sheet.NewUnavailable(operation, err)
}

// S3Options locates workbooks in a bucket.
type S3Options struct {
	Bucket string
	// Key names the object directly; otherwise it is <Prefix>/<resource>.xlsx.
	Key     string
	Prefix  string
	Region  string
	Profile string
}

// key returns the object key holding resource.
func (o S3Options) key(resource string) string {
	if o.Key != "" {
		return o.Key
	}
	name := resource + ".xlsx"
	if o.Prefix == "" {
		return name
	}
	return o.Prefix + "/" + name
}

// S3Dialer returns a Dialer that stores each resource in one object of
// opts.Bucket.
func S3Dialer(opts S3Options, logger *slog.Logger) sheet.Dialer {
	return func(ctx context.Context, resource string) (sheet.Backend, error) {
		if opts.Bucket == "" {
			return nil, errors.New("s3 bucket cannot be empty")
		}

		loadOpts := []func(*config.LoadOptions) error{
			// sheet.Client owns the retry policy
			config.WithRetryMaxAttempts(1),
		}
		if opts.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(opts.Region))
		}
		if opts.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
		}

		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, wrapS3Error(err, "load AWS config")
		}

		blob := NewS3Blob(opts.Bucket, opts.key(resource), s3.NewFromConfig(cfg), sts.NewFromConfig(cfg))
		if logger != nil {
			logger.Debug("dialed workbook", "resource", resource, "location", blob.Location())
		}
		return New(blob, logger), nil
	}
}

// FileDialer returns a Dialer that stores each resource as dir/<resource>.xlsx.
func FileDialer(dir string, logger *slog.Logger) sheet.Dialer {
	return func(_ context.Context, resource string) (sheet.Backend, error) {
		if dir == "" {
			return nil, errors.New("workbook directory cannot be empty")
		}
		return New(&FileBlob{Path: filepath.Join(dir, resource+".xlsx")}, logger), nil
	}
}

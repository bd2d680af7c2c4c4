package sinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
)

// S3Uploader uploads one object. *manager.Uploader satisfies it.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config describes the bucket artifacts are published to. Empty fields
// fall back to the default AWS configuration chain.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

func (c S3Config) loadOptions() []func(*config.LoadOptions) error {
	// A BuildableClient lets the loader install AWS_CA_BUNDLE roots.
	client := awshttp.NewBuildableClient().WithTransportOptions(pooledTransport)
	opts := []func(*config.LoadOptions) error{config.WithHTTPClient(client)}

	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		static := credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(static))
	}
	return opts
}

func (c S3Config) clientOptions(o *s3.Options) {
	if c.Endpoint != "" {
		o.BaseEndpoint = aws.String(c.Endpoint)
	}
	o.UsePathStyle = c.ForcePathStyle
}

// pooledTransport applies the connection pooling of cleanhttp to a
// transport, leaving its TLS settings alone.
func pooledTransport(tr *http.Transport) {
	pooled := cleanhttp.DefaultPooledTransport()
	tr.Proxy = pooled.Proxy
	tr.DialContext = pooled.DialContext
	tr.MaxIdleConns = pooled.MaxIdleConns
	tr.MaxIdleConnsPerHost = pooled.MaxIdleConnsPerHost
	tr.IdleConnTimeout = pooled.IdleConnTimeout
	tr.TLSHandshakeTimeout = pooled.TLSHandshakeTimeout
	tr.ExpectContinueTimeout = pooled.ExpectContinueTimeout
	tr.ForceAttemptHTTP2 = pooled.ForceAttemptHTTP2
}

// S3Sink publishes encoded artifacts to S3-compatible object storage.
type S3Sink struct {
	bucket   string
	prefix   string
	uploader S3Uploader
}

func NewS3Sink(ctx context.Context, cfg S3Config) (engine.Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, cfg.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, cfg.clientOptions)
	return newS3Sink(cfg, manager.NewUploader(client)), nil
}

func newS3Sink(cfg S3Config, uploader S3Uploader) *S3Sink {
	return &S3Sink{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: uploader,
	}
}

func (s *S3Sink) Name() string {
	return fmt.Sprintf("s3(%s)", path.Join(s.bucket, s.prefix))
}

func (s *S3Sink) Kind() string {
	return "s3"
}

// Write uploads an artifact under the sink prefix. The object key keeps
// the artifact name so .lzfse and .aar objects stay recognizable.
func (s *S3Sink) Write(ctx context.Context, name string, data io.Reader) error {
	key := path.Join(s.prefix, name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType, ok := artifactContentTypes[strings.ToLower(path.Ext(name))]; ok {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Sink) Close(context.Context) error {
	return nil
}

var artifactContentTypes = map[string]string{
	"." + engine.ExtensionFile:      "application/x-lzfse",
	"." + engine.ExtensionDirectory: "application/x-apple-archive",
}

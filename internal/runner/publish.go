package runner

import (
	"context"
	"fmt"

	v1 "github.com/lzfse-cli/lzfse-cli/apis/v1"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/sinks"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// BuildSink creates the publication sink described by spec after expanding
// its templates. It returns nil when spec names no destination.
func BuildSink(ctx context.Context, fsys afero.Fs, spec *v1.PublishSpec, variables map[string]string) (engine.Sink, error) {
	if spec == nil {
		return nil, nil
	}
	expanded := *spec
	if spec.S3 != nil {
		s3 := *spec.S3
		expanded.S3 = &s3
	}
	if spec.Mirror != nil {
		mirror := *spec.Mirror
		expanded.Mirror = &mirror
	}
	if err := ExpandTemplates(&expanded, variables); err != nil {
		return nil, fmt.Errorf("failed to expand publish templates: %w", err)
	}

	switch {
	case expanded.S3 != nil && expanded.Mirror != nil:
		return nil, fmt.Errorf("publish accepts a single destination, got s3 and mirror")
	case expanded.S3 != nil:
		s3 := expanded.S3
		cfg := sinks.S3Config{
			Bucket:         s3.Bucket,
			Region:         lo.FromPtr(s3.Region),
			Endpoint:       lo.FromPtr(s3.Endpoint),
			Prefix:         lo.FromPtr(s3.Prefix),
			ForcePathStyle: s3.ForcePathStyle,
		}
		if s3.Credentials != nil {
			cfg.AccessKeyID = s3.Credentials.AccessKeyID
			cfg.SecretAccessKey = s3.Credentials.SecretAccessKey
		}
		return sinks.NewS3Sink(ctx, cfg)
	case expanded.Mirror != nil:
		return sinks.OpenFilesystemSink(fsys, expanded.Mirror.Path)
	default:
		return nil, nil
	}
}

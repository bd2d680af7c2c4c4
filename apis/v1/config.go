package v1

// Config is the optional configuration file. Command line flags override
// every setting made here.
type Config struct {
	Kind     string        `yaml:"kind" json:"kind" validate:"required,eq=Config"`
	Pipeline *PipelineSpec `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Publish  *PublishSpec  `yaml:"publish,omitempty" json:"publish,omitempty"`
}

// PipelineSpec configures the compression pipeline.
type PipelineSpec struct {
	// BlockSize is the uncompressed block size in bytes (default: 1048576).
	BlockSize *int `yaml:"block_size,omitempty" json:"block_size,omitempty" validate:"omitempty,min=1,max=67108864"`
	// Threads bounds concurrent block work; 0 uses every CPU.
	Threads *int `yaml:"threads,omitempty" json:"threads,omitempty" validate:"omitempty,min=0,max=4096"`
	// Codec is one of none, zstd, lz4, snappy, brotli, gzip (default: zstd).
	Codec *string `yaml:"codec,omitempty" json:"codec,omitempty" validate:"omitempty,oneof=none zstd lz4 snappy brotli gzip"`
	// KeepPartial keeps the output of a failed run.
	KeepPartial *bool `yaml:"keep_partial,omitempty" json:"keep_partial,omitempty"`
}

// PublishSpec configures where encoded artifacts are published after a
// successful encode. At most one destination may be set. The S3 prefix and
// the mirror path accept ${VAR} templates.
type PublishSpec struct {
	S3     *S3Spec     `yaml:"s3,omitempty" json:"s3,omitempty"`
	Mirror *MirrorSpec `yaml:"mirror,omitempty" json:"mirror,omitempty"`
}

// MirrorSpec copies encoded artifacts into a local directory.
type MirrorSpec struct {
	Path string `yaml:"path" json:"path" validate:"required" template:""`
}

type S3Spec struct {
	Bucket         string         `yaml:"bucket" json:"bucket" validate:"required"`
	Region         *string        `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint       *string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	Prefix         *string        `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	ForcePathStyle bool           `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	Credentials    *S3Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" validate:"required"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" validate:"required"`
}

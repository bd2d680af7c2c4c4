package runner

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/lzfse-cli/lzfse-cli/apis/v1"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/codecs"
)

// Config is read by every operation of a Runner and never changes during
// its lifetime.
type Config struct {
	// BlockSize is the uncompressed size of a compression block.
	BlockSize int `validate:"min=1,max=67108864"`
	// ThreadCount bounds the blocks processed concurrently; 0 selects
	// GOMAXPROCS.
	ThreadCount int `validate:"min=0,max=4096"`
	// Codec names the block codec used on encode. Decoding uses whatever
	// codec the stream header records.
	Codec string `validate:"required"`
	// KeepPartial leaves the output of a failed operation in place.
	KeepPartial bool
}

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

func DefaultConfig() Config {
	return Config{
		BlockSize:   engine.DefaultBlockSize,
		ThreadCount: 0,
		Codec:       string(codecs.Default),
		KeepPartial: false,
	}
}

func (c Config) Validate() error {
	if err := defaultValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ParseConfig parses a YAML or JSON configuration file and validates it.
func ParseConfig(data []byte) (v1.Config, error) {
	var cfg v1.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return v1.Config{}, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	if err := defaultValidator.Struct(cfg); err != nil {
		return v1.Config{}, fmt.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

// ConfigFromSpec overlays the settings of a configuration file on base.
func ConfigFromSpec(base Config, spec v1.Config) Config {
	cfg := base
	p := spec.Pipeline
	if p == nil {
		return cfg
	}
	if p.BlockSize != nil {
		cfg.BlockSize = *p.BlockSize
	}
	if p.Threads != nil {
		cfg.ThreadCount = *p.Threads
	}
	if p.Codec != nil {
		cfg.Codec = *p.Codec
	}
	if p.KeepPartial != nil {
		cfg.KeepPartial = *p.KeepPartial
	}
	return cfg
}

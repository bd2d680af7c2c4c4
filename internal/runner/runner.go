package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/blockstream"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/codecs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Request is the input of one operation. Paths are used as given; OutputPath
// is the final path of the file or directory to produce.
type Request struct {
	InputPath  string
	OutputPath string
	Overwrite  bool
}

// Runner builds, drives and tears down the chain of stages of each
// operation. Operations on distinct paths may run concurrently.
type Runner struct {
	logger   *zap.Logger
	fs       afero.Fs
	files    *Filesystem
	config   Config
	registry *engine.Registry
	codec    engine.Codec
	sink     engine.Sink
}

type Option func(*Runner)

// WithSink publishes every encoded output to sink.
func WithSink(sink engine.Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

func New(logger *zap.Logger, fsys afero.Fs, cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := codecs.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build codec registry: %w", err)
	}
	codec, err := registry.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		logger:   logger,
		fs:       fsys,
		files:    NewFilesystem(fsys),
		config:   cfg,
		registry: registry,
		codec:    codec,
	}
	for _, opt := range opts {
		opt(r)
	}

	logger.Debug("runner created",
		zap.String("codec", codec.Name()),
		zap.Int("block_size", cfg.BlockSize),
		zap.Int("threads", cfg.ThreadCount),
	)
	return r, nil
}

func (r *Runner) Config() Config {
	return r.config
}

// Shutdown releases the publication sink, if any.
func (r *Runner) Shutdown(ctx context.Context) error {
	if r.sink == nil {
		return nil
	}
	if err := r.sink.Close(ctx); err != nil {
		return fmt.Errorf("failed to close sink %s: %w", r.sink.Name(), err)
	}
	return nil
}

// Run dispatches to the operation selected by op and target.
func (r *Runner) Run(ctx context.Context, op engine.Operation, target engine.Target, req Request) (engine.Result, error) {
	switch {
	case op == engine.OperationEncode && target == engine.TargetFile:
		return r.EncodeFile(ctx, req)
	case op == engine.OperationEncode && target == engine.TargetDirectory:
		return r.EncodeDirectory(ctx, req)
	case op == engine.OperationDecode && target == engine.TargetFile:
		return r.DecodeFile(ctx, req)
	case op == engine.OperationDecode && target == engine.TargetDirectory:
		return r.DecodeDirectory(ctx, req)
	default:
		return engine.Result{}, fmt.Errorf("unsupported operation %s on %s", op, target)
	}
}

// Plan resolves the target and output path of a request from its input and
// an optional output directory.
func (r *Runner) Plan(op engine.Operation, input, outputDir string, overwrite bool) (engine.Target, Request, error) {
	var (
		target engine.Target
		output string
		err    error
	)
	switch op {
	case engine.OperationEncode:
		if input == "" {
			return "", Request{}, engine.NewError(engine.ErrPathInvalid, "encode", input, fmt.Errorf("input path is empty"))
		}
		isDir, serr := r.files.IsDir(input)
		if serr != nil {
			return "", Request{}, serr
		}
		target = engine.TargetFile
		if isDir {
			target = engine.TargetDirectory
		}
		output, err = ResolveEncode(input, outputDir, target)
	case engine.OperationDecode:
		target, output, err = ResolveDecode(input, outputDir)
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return "", Request{}, err
	}
	return target, Request{InputPath: input, OutputPath: output, Overwrite: overwrite}, nil
}

// buildFunc opens the stages of an operation, adding each to chain as soon
// as it is open, and drives them to completion.
type buildFunc func(ctx context.Context, logger *zap.Logger, chain *engine.Chain, req Request) ([]engine.EntryResult, error)

func (r *Runner) run(ctx context.Context, op engine.Operation, target engine.Target, req Request, build buildFunc) (engine.Result, error) {
	logger := r.logger.With(
		zap.String("operation_id", uuid.NewString()),
		zap.String("operation", string(op)),
		zap.String("target", string(target)),
		zap.String("input", req.InputPath),
		zap.String("output", req.OutputPath),
	)

	if req.InputPath == "" || req.OutputPath == "" {
		return engine.Result{}, engine.NewError(engine.ErrPathInvalid, string(op), req.InputPath, fmt.Errorf("input and output paths are required"))
	}
	if filepath.Clean(req.InputPath) == filepath.Clean(req.OutputPath) {
		return engine.Result{}, engine.NewError(engine.ErrPathInvalid, string(op), req.OutputPath, fmt.Errorf("output is the input"))
	}
	if err := ctx.Err(); err != nil {
		return engine.Result{}, err
	}
	if err := r.prepareOutput(logger, req); err != nil {
		return engine.Result{}, err
	}

	start := time.Now()
	logger.Info("operation started")

	chain := engine.NewChain(logger.Named("chain"), fmt.Sprintf("%s-%s", op, target))
	entries, err := r.drive(ctx, logger, chain, req, build)
	if err != nil {
		err = errors.Join(err, r.discardOutput(logger, req.OutputPath))
		// the caller reports the returned error
		logger.Debug("operation failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return engine.Result{}, err
	}

	result, err := r.sizes(target, req)
	if err != nil {
		return engine.Result{}, err
	}
	result.Entries = entries

	if op == engine.OperationEncode && r.sink != nil {
		if err := r.publish(ctx, logger, req.OutputPath); err != nil {
			return engine.Result{}, err
		}
	}

	logger.Info("operation finished",
		zap.Int("stages", chain.Len()),
		zap.Uint64("input_size", result.InputSize),
		zap.Uint64("output_size", result.OutputSize),
		zap.Int("skipped_entries", len(result.Skipped())),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// drive runs build and closes the chain on every path, joining close
// failures into the returned error.
func (r *Runner) drive(ctx context.Context, logger *zap.Logger, chain *engine.Chain, req Request, build buildFunc) (entries []engine.EntryResult, err error) {
	defer func() {
		// closing must happen even when ctx was canceled
		err = errors.Join(err, chain.Close(context.WithoutCancel(ctx)))
	}()
	return build(ctx, logger, chain, req)
}

// prepareOutput applies the overwrite policy.
func (r *Runner) prepareOutput(logger *zap.Logger, req Request) error {
	exists, err := r.files.Exists(req.OutputPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if !req.Overwrite {
		return engine.NewError(engine.ErrAlreadyExists, "prepare output", req.OutputPath, nil)
	}
	logger.Info("removing existing output")
	return r.files.Remove(req.OutputPath)
}

// discardOutput removes what a failed operation produced. The output did not
// exist before the chain was built, so anything there now is partial.
func (r *Runner) discardOutput(logger *zap.Logger, output string) error {
	if r.config.KeepPartial {
		logger.Info("keeping partial output")
		return nil
	}
	exists, err := r.files.Exists(output)
	if err != nil || !exists {
		return nil
	}
	if err := r.files.Remove(output); err != nil {
		return fmt.Errorf("failed to remove partial output: %w", err)
	}
	logger.Debug("removed partial output")
	return nil
}

func (r *Runner) sizes(target engine.Target, req Request) (engine.Result, error) {
	size := r.files.FileSize
	if target == engine.TargetDirectory {
		size = r.files.TotalSize
	}
	in, err := size(req.InputPath)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to measure input: %w", err)
	}
	out, err := size(req.OutputPath)
	if err != nil {
		return engine.Result{}, fmt.Errorf("failed to measure output: %w", err)
	}
	return engine.Result{InputSize: in, OutputSize: out}, nil
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, output string) (err error) {
	f, err := r.fs.Open(output)
	if err != nil {
		return engine.ClassifyIO("open", output, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := r.sink.Write(ctx, filepath.Base(output), f); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.sink.Name(), err)
	}
	logger.Info("published output", zap.String("sink", r.sink.Name()))
	return nil
}

func (r *Runner) blockOptions() blockstream.Options {
	return blockstream.Options{
		BlockSize: r.config.BlockSize,
		Threads:   r.config.ThreadCount,
	}
}

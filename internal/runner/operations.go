package runner

import (
	"context"
	"fmt"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/archive"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/blockstream"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/extract"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/streams"
	"go.uber.org/zap"
)

// EncodeFile compresses a single file:
// read stream -> compression -> write stream.
func (r *Runner) EncodeFile(ctx context.Context, req Request) (engine.Result, error) {
	return r.run(ctx, engine.OperationEncode, engine.TargetFile, req, r.encodeFile)
}

// DecodeFile expands a single file:
// read stream -> decompression -> write stream.
func (r *Runner) DecodeFile(ctx context.Context, req Request) (engine.Result, error) {
	return r.run(ctx, engine.OperationDecode, engine.TargetFile, req, r.decodeFile)
}

// EncodeDirectory archives a tree:
// traversal -> archive encode -> compression -> write stream.
func (r *Runner) EncodeDirectory(ctx context.Context, req Request) (engine.Result, error) {
	return r.run(ctx, engine.OperationEncode, engine.TargetDirectory, req, r.encodeDirectory)
}

// DecodeDirectory extracts an archive into a new directory:
// read stream -> decompression -> archive decode -> extraction.
func (r *Runner) DecodeDirectory(ctx context.Context, req Request) (engine.Result, error) {
	return r.run(ctx, engine.OperationDecode, engine.TargetDirectory, req, r.decodeDirectory)
}

func (r *Runner) encodeFile(ctx context.Context, _ *zap.Logger, chain *engine.Chain, req Request) ([]engine.EntryResult, error) {
	src, err := streams.OpenRead(r.fs, req.InputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, src); err != nil {
		return nil, err
	}

	dst, err := streams.OpenWrite(r.fs, req.OutputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, dst); err != nil {
		return nil, err
	}

	compress, err := blockstream.NewWriter(dst, r.codec, r.blockOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create compression stage: %w", err)
	}
	if err := chain.Add(ctx, compress); err != nil {
		return nil, err
	}

	if _, err := streams.Copy(compress, src); err != nil {
		compress.Abort()
		return nil, err
	}
	return nil, nil
}

func (r *Runner) decodeFile(ctx context.Context, _ *zap.Logger, chain *engine.Chain, req Request) ([]engine.EntryResult, error) {
	src, err := streams.OpenRead(r.fs, req.InputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, src); err != nil {
		return nil, err
	}

	decompress, err := blockstream.NewReader(src, r.registry, r.blockOptions())
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, decompress); err != nil {
		return nil, err
	}

	dst, err := streams.OpenWrite(r.fs, req.OutputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, dst); err != nil {
		return nil, err
	}

	if _, err := streams.Copy(dst, decompress); err != nil {
		return nil, err
	}
	return nil, nil
}

func (r *Runner) encodeDirectory(ctx context.Context, _ *zap.Logger, chain *engine.Chain, req Request) ([]engine.EntryResult, error) {
	isDir, err := r.files.IsDir(req.InputPath)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, engine.NewError(engine.ErrPathInvalid, "encode", req.InputPath, fmt.Errorf("not a directory"))
	}
	if contains(req.InputPath, req.OutputPath) {
		return nil, engine.NewError(engine.ErrPathInvalid, "encode", req.OutputPath, fmt.Errorf("output lies inside the input directory"))
	}

	dst, err := streams.OpenWrite(r.fs, req.OutputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, dst); err != nil {
		return nil, err
	}

	compress, err := blockstream.NewWriter(dst, r.codec, r.blockOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create compression stage: %w", err)
	}
	if err := chain.Add(ctx, compress); err != nil {
		return nil, err
	}

	encoder, err := archive.NewEncoder(compress, archive.DefaultFieldSet)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive stage: %w", err)
	}
	if err := chain.Add(ctx, encoder); err != nil {
		return nil, err
	}

	if err := encoder.WriteDirectoryContents(ctx, r.fs, req.InputPath); err != nil {
		compress.Abort()
		return nil, err
	}
	return nil, nil
}

func (r *Runner) decodeDirectory(ctx context.Context, logger *zap.Logger, chain *engine.Chain, req Request) ([]engine.EntryResult, error) {
	src, err := streams.OpenRead(r.fs, req.InputPath)
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, src); err != nil {
		return nil, err
	}

	decompress, err := blockstream.NewReader(src, r.registry, r.blockOptions())
	if err != nil {
		return nil, err
	}
	if err := chain.Add(ctx, decompress); err != nil {
		return nil, err
	}

	decoder := archive.NewDecoder(decompress)
	if err := chain.Add(ctx, decoder); err != nil {
		return nil, err
	}

	if err := r.files.CreateDirectory(req.OutputPath); err != nil {
		return nil, err
	}

	extractor := extract.New(logger.Named("extract"), r.fs, req.OutputPath)
	if err := chain.Add(ctx, extractor); err != nil {
		return nil, err
	}

	report, err := extractor.Extract(ctx, decoder)
	if err != nil {
		return report.Entries, err
	}
	return report.Entries, nil
}

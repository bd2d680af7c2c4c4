package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/archive"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/blockstream"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/codecs"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const alice = "Alice was beginning to get very tired of sitting by her sister on the bank, " +
	"and of having nothing to do: once or twice she had peeped into the book her sister was reading, " +
	"but it had no pictures or conversations in it, 'and what is the use of a book,' thought Alice " +
	"'without pictures or conversations?'\n"

func aliceText() []byte {
	return []byte(strings.Repeat(alice, 600))
}

func newTestRunner(t *testing.T, fsys afero.Fs, mutate func(*Config), opts ...Option) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BlockSize = 16 << 10
	cfg.ThreadCount = 4
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := New(zap.NewNop(), fsys, cfg, opts...)
	require.NoError(t, err)
	return r
}

func plan(t *testing.T, r *Runner, op engine.Operation, input, outputDir string, overwrite bool) (engine.Target, Request) {
	t.Helper()
	target, req, err := r.Plan(op, input, outputDir, overwrite)
	require.NoError(t, err)
	return target, req
}

func TestRunner_FileRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	text := aliceText()
	require.NoError(t, afero.WriteFile(fsys, "/books/alice29.txt", text, 0o644))
	require.NoError(t, fsys.MkdirAll("/restored", 0o755))

	r := newTestRunner(t, fsys, nil)

	target, req := plan(t, r, engine.OperationEncode, "/books/alice29.txt", "", false)
	assert.Equal(t, engine.TargetFile, target)
	assert.Equal(t, "/books/alice29.txt.lzfse", req.OutputPath)

	result, err := r.Run(t.Context(), engine.OperationEncode, target, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(text)), result.InputSize)
	assert.Less(t, result.OutputSize, result.InputSize)
	assert.Positive(t, result.Ratio())
	assert.Empty(t, result.Entries)

	encoded := lo.Must(afero.ReadFile(fsys, "/books/alice29.txt.lzfse"))
	assert.Equal(t, uint64(len(encoded)), result.OutputSize)
	assert.Equal(t, "bvxs", string(encoded[:4]))

	target, req = plan(t, r, engine.OperationDecode, "/books/alice29.txt.lzfse", "/restored", false)
	assert.Equal(t, engine.TargetFile, target)
	assert.Equal(t, "/restored/alice29.txt", req.OutputPath)

	result, err = r.Run(t.Context(), engine.OperationDecode, target, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(encoded)), result.InputSize)
	assert.Equal(t, uint64(len(text)), result.OutputSize)

	decoded := lo.Must(afero.ReadFile(fsys, "/restored/alice29.txt"))
	assert.Equal(t, text, decoded)
}

func TestRunner_FileRoundTrip_Codecs(t *testing.T) {
	for _, name := range []codecs.Name{codecs.NameNone, codecs.NameZstd, codecs.NameLZ4, codecs.NameSnappy, codecs.NameBrotli, codecs.NameGzip} {
		t.Run(string(name), func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			text := aliceText()
			require.NoError(t, afero.WriteFile(fsys, "/a.txt", text, 0o644))

			enc := newTestRunner(t, fsys, func(c *Config) { c.Codec = string(name) })
			_, err := enc.EncodeFile(t.Context(), Request{InputPath: "/a.txt", OutputPath: "/a.txt.lzfse"})
			require.NoError(t, err)

			// the decoder follows the stream header, not its own codec setting
			dec := newTestRunner(t, fsys, nil)
			_, err = dec.DecodeFile(t.Context(), Request{InputPath: "/a.txt.lzfse", OutputPath: "/b.txt"})
			require.NoError(t, err)
			assert.Equal(t, text, lo.Must(afero.ReadFile(fsys, "/b.txt")))
		})
	}
}

func TestRunner_EmptyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/empty", nil, 0o644))
	r := newTestRunner(t, fsys, nil)

	result, err := r.EncodeFile(t.Context(), Request{InputPath: "/empty", OutputPath: "/empty.lzfse"})
	require.NoError(t, err)
	assert.Zero(t, result.InputSize)
	assert.Zero(t, result.Ratio())

	_, err = r.DecodeFile(t.Context(), Request{InputPath: "/empty.lzfse", OutputPath: "/empty.out"})
	require.NoError(t, err)
	assert.Empty(t, lo.Must(afero.ReadFile(fsys, "/empty.out")))
}

func TestRunner_ExistingOutput(t *testing.T) {
	tests := []struct {
		name      string
		overwrite bool
		wantErr   error
	}{
		{name: "refused without overwrite", overwrite: false, wantErr: engine.ErrAlreadyExists},
		{name: "replaced with overwrite", overwrite: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "/in.txt", aliceText(), 0o644))
			require.NoError(t, afero.WriteFile(fsys, "/in.txt.lzfse", []byte("precious"), 0o644))
			r := newTestRunner(t, fsys, nil)

			_, err := r.EncodeFile(t.Context(), Request{InputPath: "/in.txt", OutputPath: "/in.txt.lzfse", Overwrite: tt.overwrite})
			got := lo.Must(afero.ReadFile(fsys, "/in.txt.lzfse"))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "precious", string(got))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "bvxs", string(got[:4]))
		})
	}
}

func TestRunner_Plan(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/notes.txt", []byte("x"), 0o644))
	require.NoError(t, fsys.MkdirAll("/data/photos", 0o755))
	r := newTestRunner(t, fsys, nil)

	tests := []struct {
		name       string
		op         engine.Operation
		input      string
		outputDir  string
		wantTarget engine.Target
		wantOutput string
		wantErr    error
	}{
		{name: "encode file", op: engine.OperationEncode, input: "/data/notes.txt", wantTarget: engine.TargetFile, wantOutput: "/data/notes.txt.lzfse"},
		{name: "encode directory", op: engine.OperationEncode, input: "/data/photos/", wantTarget: engine.TargetDirectory, wantOutput: "/data/photos.aar"},
		{name: "encode into output dir", op: engine.OperationEncode, input: "/data/notes.txt", outputDir: "/out", wantTarget: engine.TargetFile, wantOutput: "/out/notes.txt.lzfse"},
		{name: "encode missing input", op: engine.OperationEncode, input: "/data/missing", wantErr: engine.ErrNotFound},
		{name: "encode empty input", op: engine.OperationEncode, input: "", wantErr: engine.ErrPathInvalid},
		{name: "decode file", op: engine.OperationDecode, input: "/data/notes.txt.lzfse", wantTarget: engine.TargetFile, wantOutput: "/data/notes.txt"},
		{name: "decode archive", op: engine.OperationDecode, input: "/data/photos.aar", outputDir: "/out", wantTarget: engine.TargetDirectory, wantOutput: "/out/photos"},
		{name: "decode upper case extension", op: engine.OperationDecode, input: "/data/NOTES.LZFSE", wantTarget: engine.TargetFile, wantOutput: "/data/NOTES"},
		{name: "decode unknown extension", op: engine.OperationDecode, input: "/data/notes.txt", wantErr: engine.ErrPathInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, req, err := r.Plan(tt.op, tt.input, tt.outputDir, true)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantOutput, req.OutputPath)
			assert.Equal(t, tt.input, req.InputPath)
			assert.True(t, req.Overwrite)
		})
	}
}

func TestRunner_DecodeRejectsBadExtensionBeforeOpening(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestRunner(t, fsys, nil)

	// the input does not even exist: the extension gate fires first
	_, _, err := r.Plan(engine.OperationDecode, "/nowhere/archive.zip", "", false)
	require.ErrorIs(t, err, engine.ErrPathInvalid)
	assert.NotErrorIs(t, err, engine.ErrNotFound)
}

func TestRunner_RejectsInputAsOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/a.lzfse", []byte("data"), 0o644))
	r := newTestRunner(t, fsys, nil)

	_, err := r.DecodeFile(t.Context(), Request{InputPath: "/a.lzfse", OutputPath: "/./a.lzfse", Overwrite: true})
	require.ErrorIs(t, err, engine.ErrPathInvalid)
	assert.Equal(t, "data", string(lo.Must(afero.ReadFile(fsys, "/a.lzfse"))))
}

func TestRunner_RunUnknownOperation(t *testing.T) {
	r := newTestRunner(t, afero.NewMemMapFs(), nil)
	_, err := r.Run(t.Context(), engine.Operation("list"), engine.TargetFile, Request{})
	assert.Error(t, err)
}

func TestRunner_Canceled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/in.txt", aliceText(), 0o644))
	r := newTestRunner(t, fsys, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := r.EncodeFile(ctx, Request{InputPath: "/in.txt", OutputPath: "/in.txt.lzfse"})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, lo.Must(afero.Exists(fsys, "/in.txt.lzfse")))
}

func truncatedStream(t *testing.T) []byte {
	t.Helper()
	codec := lo.Must(codecs.New(codecs.NameZstd))
	var buf bytes.Buffer
	w, err := blockstream.NewWriter(&buf, codec, blockstream.Options{BlockSize: 4096, Threads: 1})
	require.NoError(t, err)
	_, err = w.Write(aliceText())
	require.NoError(t, err)
	require.NoError(t, w.Close(t.Context()))
	return buf.Bytes()[:buf.Len()/2]
}

func TestRunner_CorruptInput(t *testing.T) {
	tests := []struct {
		name        string
		keepPartial bool
	}{
		{name: "partial output removed", keepPartial: false},
		{name: "partial output kept", keepPartial: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "/broken.lzfse", truncatedStream(t), 0o644))
			r := newTestRunner(t, fsys, func(c *Config) { c.KeepPartial = tt.keepPartial })

			_, err := r.DecodeFile(t.Context(), Request{InputPath: "/broken.lzfse", OutputPath: "/broken"})
			require.ErrorIs(t, err, engine.ErrCorruptStream)
			assert.Equal(t, tt.keepPartial, lo.Must(afero.Exists(fsys, "/broken")))
		})
	}
}

func TestRunner_CorruptHeaderCreatesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bad.lzfse", []byte("not a stream at all"), 0o644))
	r := newTestRunner(t, fsys, func(c *Config) { c.KeepPartial = true })

	_, err := r.DecodeFile(t.Context(), Request{InputPath: "/bad.lzfse", OutputPath: "/bad"})
	require.ErrorIs(t, err, engine.ErrCorruptStream)
	assert.False(t, lo.Must(afero.Exists(fsys, "/bad")))
}

func TestRunner_FailureLeftToCaller(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/broken.lzfse", truncatedStream(t), 0o644))
	core, logs := observer.New(zapcore.WarnLevel)
	r, err := New(zap.New(core), fsys, DefaultConfig())
	require.NoError(t, err)

	_, err = r.DecodeFile(t.Context(), Request{InputPath: "/broken.lzfse", OutputPath: "/broken"})
	require.ErrorIs(t, err, engine.ErrCorruptStream)
	assert.Zero(t, logs.Len(), "the failure is returned once and not logged at warn or above")
}

func memTree(t *testing.T, fsys afero.Fs, root string) map[string]string {
	t.Helper()
	files := map[string]string{
		"readme.md":          "# photos\n",
		"2024/beach.raw":     strings.Repeat("sand", 5000),
		"2024/nested/a.txt":  alice,
		"2025/empty.txt":     "",
		"2025/mountains.raw": string(aliceText()),
	}
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(root, name), []byte(data), 0o644))
	}
	require.NoError(t, fsys.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	return files
}

func TestRunner_DirectoryRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := memTree(t, fsys, "/photos")
	var total int
	for _, data := range files {
		total += len(data)
	}
	require.NoError(t, fsys.MkdirAll("/restore", 0o755))
	r := newTestRunner(t, fsys, nil)

	target, req := plan(t, r, engine.OperationEncode, "/photos", "", false)
	require.Equal(t, engine.TargetDirectory, target)
	result, err := r.Run(t.Context(), engine.OperationEncode, target, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(total), result.InputSize)
	assert.Less(t, result.OutputSize, result.InputSize)

	target, req = plan(t, r, engine.OperationDecode, "/photos.aar", "/restore", false)
	require.Equal(t, engine.TargetDirectory, target)
	result, err = r.Run(t.Context(), engine.OperationDecode, target, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(total), result.OutputSize)
	assert.Empty(t, result.Skipped())
	// five files, four directories and the root
	assert.Len(t, result.Entries, 10)

	for name, want := range files {
		got, err := afero.ReadFile(fsys, filepath.Join("/restore/photos", name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}
	info, err := fsys.Stat("/restore/photos/empty-dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunner_EncodeDirectoryRecordsEveryField(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/d/a.txt", []byte("hello world"), 0o640))
	r := newTestRunner(t, fsys, nil)

	_, err := r.EncodeDirectory(t.Context(), Request{InputPath: "/d", OutputPath: "/d.aar"})
	require.NoError(t, err)

	f := lo.Must(fsys.Open("/d.aar"))
	defer f.Close()
	stream, err := blockstream.NewReader(f, lo.Must(codecs.NewRegistry()), blockstream.Options{})
	require.NoError(t, err)
	decoder := archive.NewDecoder(stream)

	root, err := decoder.Next()
	require.NoError(t, err)
	assert.Equal(t, archive.TypeDirectory, root.Type)

	file, err := decoder.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.txt", file.Path)
	for _, field := range []archive.Field{archive.FieldType, archive.FieldPath, archive.FieldData, archive.FieldUID, archive.FieldGID, archive.FieldMode, archive.FieldModTime} {
		assert.True(t, file.Has(field), "field %s", field)
	}
	assert.Equal(t, os.FileMode(0o640), file.Mode)
	assert.Equal(t, "hello world", string(lo.Must(io.ReadAll(decoder))))

	_, err = decoder.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunner_DirectoryOutputInsideInput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	memTree(t, fsys, "/photos")
	r := newTestRunner(t, fsys, nil)

	_, err := r.EncodeDirectory(t.Context(), Request{InputPath: "/photos", OutputPath: "/photos/self.aar"})
	require.ErrorIs(t, err, engine.ErrPathInvalid)
	assert.False(t, lo.Must(afero.Exists(fsys, "/photos/self.aar")))
}

func TestRunner_EncodeDirectoryRejectsFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/file", []byte("x"), 0o644))
	r := newTestRunner(t, fsys, nil)

	_, err := r.EncodeDirectory(t.Context(), Request{InputPath: "/file", OutputPath: "/file.aar"})
	require.ErrorIs(t, err, engine.ErrPathInvalid)
}

func TestRunner_DecodeDirectoryFromFileStream(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/notes.txt", aliceText(), 0o644))
	r := newTestRunner(t, fsys, nil)

	_, err := r.EncodeFile(t.Context(), Request{InputPath: "/notes.txt", OutputPath: "/notes.aar"})
	require.NoError(t, err)

	// a plain compressed file is not an archive
	_, err = r.DecodeDirectory(t.Context(), Request{InputPath: "/notes.aar", OutputPath: "/notes"})
	require.ErrorIs(t, err, engine.ErrCorruptStream)
	assert.False(t, lo.Must(afero.Exists(fsys, "/notes")))
}

func TestRunner_DirectoryRoundTrip_OsFs(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "src", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte(alice), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "src", "pkg", "main.go"), []byte("package main\n"), 0o600))
	require.NoError(t, os.Symlink("src/pkg/main.go", filepath.Join(src, "entry")))
	require.NoError(t, os.Link(filepath.Join(src, "README"), filepath.Join(src, "README.copy")))

	r := newTestRunner(t, afero.NewOsFs(), nil)

	target, req := plan(t, r, engine.OperationEncode, src, "", false)
	require.Equal(t, engine.TargetDirectory, target)
	require.Equal(t, src+".aar", req.OutputPath)
	_, err := r.Run(t.Context(), engine.OperationEncode, target, req)
	require.NoError(t, err)

	// decoding next to the archive lands on the original tree
	target, req = plan(t, r, engine.OperationDecode, src+".aar", "", false)
	_, err = r.Run(t.Context(), engine.OperationDecode, target, req)
	require.ErrorIs(t, err, engine.ErrAlreadyExists)

	require.NoError(t, os.WriteFile(filepath.Join(src, "stale"), []byte("gone after decode"), 0o644))
	target, req = plan(t, r, engine.OperationDecode, src+".aar", "", true)
	result, err := r.Run(t.Context(), engine.OperationDecode, target, req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Entries)

	_, err = os.Lstat(filepath.Join(src, "stale"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Equal(t, alice, string(lo.Must(os.ReadFile(filepath.Join(src, "README")))))
	assert.Equal(t, "src/pkg/main.go", lo.Must(os.Readlink(filepath.Join(src, "entry"))))

	info := lo.Must(os.Stat(filepath.Join(src, "src", "pkg", "main.go")))
	assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())

	assert.True(t, os.SameFile(
		lo.Must(os.Stat(filepath.Join(src, "README"))),
		lo.Must(os.Stat(filepath.Join(src, "README.copy"))),
	))
}

type recordingSink struct {
	objects map[string][]byte
	err     error
	closed  bool
}

func (s *recordingSink) Name() string { return "recording" }
func (s *recordingSink) Kind() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, path string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[path] = b
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func TestRunner_DecodeDirectoryCreateFailed(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte(alice), 0o644))

	r := newTestRunner(t, afero.NewOsFs(), nil)
	archivePath := filepath.Join(root, "src.aar")
	_, err := r.EncodeDirectory(t.Context(), Request{InputPath: src, OutputPath: archivePath})
	require.NoError(t, err)

	missing := filepath.Join(root, "missing")
	_, err = r.DecodeDirectory(t.Context(), Request{InputPath: archivePath, OutputPath: filepath.Join(missing, "x", "d")})
	require.ErrorIs(t, err, engine.ErrDirectoryCreateFailed)
	assert.NoDirExists(t, missing)

	// the stages opened before the failure were released; the archive is intact
	restored := filepath.Join(root, "restored")
	_, err = r.DecodeDirectory(t.Context(), Request{InputPath: archivePath, OutputPath: restored})
	require.NoError(t, err)
	assert.Equal(t, alice, string(lo.Must(os.ReadFile(filepath.Join(restored, "a.txt")))))
}

func TestRunner_Publish(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/books/alice29.txt", aliceText(), 0o644))
	sink := &recordingSink{}
	r := newTestRunner(t, fsys, nil, WithSink(sink))

	_, err := r.EncodeFile(t.Context(), Request{InputPath: "/books/alice29.txt", OutputPath: "/books/alice29.txt.lzfse"})
	require.NoError(t, err)

	require.Contains(t, sink.objects, "alice29.txt.lzfse")
	assert.Equal(t, lo.Must(afero.ReadFile(fsys, "/books/alice29.txt.lzfse")), sink.objects["alice29.txt.lzfse"])

	// decoding is never published
	_, err = r.DecodeFile(t.Context(), Request{InputPath: "/books/alice29.txt.lzfse", OutputPath: "/books/copy.txt"})
	require.NoError(t, err)
	assert.Len(t, sink.objects, 1)

	require.NoError(t, r.Shutdown(t.Context()))
	assert.True(t, sink.closed)
}

func TestRunner_PublishFailure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/a.txt", aliceText(), 0o644))
	refused := errors.New("bucket is read-only")
	r := newTestRunner(t, fsys, nil, WithSink(&recordingSink{err: refused}))

	_, err := r.EncodeFile(t.Context(), Request{InputPath: "/a.txt", OutputPath: "/a.txt.lzfse"})
	require.ErrorIs(t, err, refused)
	// the local artifact is complete and stays
	assert.True(t, lo.Must(afero.Exists(fsys, "/a.txt.lzfse")))
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero block size", mutate: func(c *Config) { c.BlockSize = 0 }},
		{name: "block size too large", mutate: func(c *Config) { c.BlockSize = 1 << 27 }},
		{name: "negative threads", mutate: func(c *Config) { c.ThreadCount = -1 }},
		{name: "unknown codec", mutate: func(c *Config) { c.Codec = "lzma" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(zap.NewNop(), afero.NewMemMapFs(), cfg)
			assert.Error(t, err)
		})
	}
}

package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
)

// ResolveEncode derives the output path of an encode. The output is named
// after the input with the extension of the target appended and is placed
// in outputDir, or beside the input when outputDir is empty.
func ResolveEncode(input, outputDir string, target engine.Target) (string, error) {
	if input == "" {
		return "", engine.NewError(engine.ErrPathInvalid, "encode", input, fmt.Errorf("input path is empty"))
	}
	clean := filepath.Clean(input)
	base := filepath.Base(clean)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", engine.NewError(engine.ErrPathInvalid, "encode", input, fmt.Errorf("cannot derive an output name"))
	}

	ext := engine.ExtensionFile
	if target == engine.TargetDirectory {
		ext = engine.ExtensionDirectory
	}
	return place(clean, outputDir, base+"."+ext), nil
}

// ResolveDecode checks the extension of a decode input and derives the
// target and the output path. Inputs ending in neither .lzfse nor .aar,
// compared case-insensitively, are rejected.
func ResolveDecode(input, outputDir string) (engine.Target, string, error) {
	if input == "" {
		return "", "", engine.NewError(engine.ErrPathInvalid, "decode", input, fmt.Errorf("input path is empty"))
	}
	clean := filepath.Clean(input)
	base := filepath.Base(clean)

	ext := strings.ToLower(filepath.Ext(base))
	var target engine.Target
	switch ext {
	case "." + engine.ExtensionFile:
		target = engine.TargetFile
	case "." + engine.ExtensionDirectory:
		target = engine.TargetDirectory
	default:
		return "", "", engine.NewError(engine.ErrPathInvalid, "decode", input,
			fmt.Errorf("extension %q is neither .%s nor .%s", filepath.Ext(base), engine.ExtensionFile, engine.ExtensionDirectory))
	}

	name := base[:len(base)-len(ext)]
	if name == "" || name == "." || name == ".." {
		return "", "", engine.NewError(engine.ErrPathInvalid, "decode", input, fmt.Errorf("cannot derive an output name"))
	}
	return target, place(clean, outputDir, name), nil
}

func place(input, outputDir, name string) string {
	if outputDir != "" {
		return filepath.Join(outputDir, name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

// contains reports whether path is dir or lies below it.
func contains(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

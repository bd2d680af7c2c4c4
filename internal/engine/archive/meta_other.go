//go:build !linux && !darwin

package archive

import "io/fs"

func statMeta(fs.FileInfo) (sysMeta, bool) {
	return sysMeta{}, false
}

//go:build darwin

package archive

import (
	"io/fs"
	"syscall"
	"time"
)

func statMeta(info fs.FileInfo) (sysMeta, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return sysMeta{}, false
	}
	return sysMeta{
		uid:        st.Uid,
		gid:        st.Gid,
		dev:        uint64(st.Dev),
		ino:        st.Ino,
		nlink:      uint64(st.Nlink),
		rdev:       uint64(st.Rdev),
		flags:      st.Flags,
		birthTime:  time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec),
		changeTime: time.Unix(st.Ctimespec.Sec, st.Ctimespec.Nsec),
	}, true
}

//go:build linux

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
		ino:        uint64(st.Ino),
		nlink:      uint64(st.Nlink),
		rdev:       uint64(st.Rdev),
		changeTime: time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)),
	}, true
}

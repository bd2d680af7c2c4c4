package archive

import "time"

// sysMeta is the platform specific part of a file's metadata.
type sysMeta struct {
	uid, gid   uint32
	dev, ino   uint64
	nlink      uint64
	rdev       uint64
	flags      uint32
	birthTime  time.Time
	changeTime time.Time
}

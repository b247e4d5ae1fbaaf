package fsys

import (
	"io/fs"
	"time"
)

// Stat is the host metadata the archiver cares about, at nanosecond
// mtime precision.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Nlink uint64

	UID int64
	GID int64

	Size    int64
	Mode    fs.FileMode
	ModTime time.Time

	AccessTime time.Time
	ChangeTime time.Time

	Devmajor int64
	Devminor int64
}

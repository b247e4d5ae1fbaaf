//go:build linux

package fsys

import (
	"io/fs"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Enhance pulls the unix-only attributes out of an Lstat result.
func Enhance(info fs.FileInfo) (Stat, error) {
	unixStat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Stat{
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
			Nlink:   1,
		}, nil
	}

	mtimesec, mtimensec := unixStat.Mtim.Unix()
	atimesec, atimensec := unixStat.Atim.Unix()
	ctimesec, ctimensec := unixStat.Ctim.Unix()

	return Stat{
		Dev:   unixStat.Dev,
		Ino:   unixStat.Ino,
		Nlink: uint64(unixStat.Nlink),

		UID: int64(unixStat.Uid),
		GID: int64(unixStat.Gid),

		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: time.Unix(mtimesec, mtimensec),

		AccessTime: time.Unix(atimesec, atimensec),
		ChangeTime: time.Unix(ctimesec, ctimensec),

		Devmajor: int64(unix.Major(uint64(unixStat.Rdev))),
		Devminor: int64(unix.Minor(uint64(unixStat.Rdev))),
	}, nil
}

func (l *Local) Mkfifo(path string, mode uint32) error {
	return unix.Mkfifo(path, mode)
}

func (l *Local) Mknod(path string, mode uint32, dev uint64) error {
	return unix.Mknod(path, mode, int(dev))
}

// Mkdev combines major and minor numbers into a device id for Mknod.
func Mkdev(major, minor int64) uint64 {
	return unix.Mkdev(uint32(major), uint32(minor))
}

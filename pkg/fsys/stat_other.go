//go:build !linux

package fsys

import (
	"errors"
	"io/fs"
)

var errNodesUnsupported = errors.New("device and fifo nodes are not supported on this platform")

func Enhance(info fs.FileInfo) (Stat, error) {
	return Stat{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Nlink:   1,
	}, nil
}

func (l *Local) Mkfifo(path string, mode uint32) error {
	return errNodesUnsupported
}

func (l *Local) Mknod(path string, mode uint32, dev uint64) error {
	return errNodesUnsupported
}

func Mkdev(major, minor int64) uint64 {
	return 0
}

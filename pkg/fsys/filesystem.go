package fsys

import (
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// FileSystem is the narrow host interface the operation engine needs:
// afero for file and directory manipulation plus the link, node, and
// ownership operations afero does not model.
type FileSystem interface {
	afero.Fs

	Lstat(path string) (os.FileInfo, error)
	Readlink(path string) (string, error)
	Symlink(target, path string) error
	Link(target, path string) error
	Mkfifo(path string, mode uint32) error
	Mknod(path string, mode uint32, dev uint64) error
	Lchown(path string, uid, gid int) error
}

// XattrLister is the optional extension a FileSystem implements when
// it can enumerate extended attributes. The OS syscall binding is
// supplied by the embedder; Local does not implement it.
type XattrLister interface {
	ListXattrs(path string) (map[string]string, error)
}

// Local is the operating-system backed FileSystem.
type Local struct {
	afero.Fs
}

// NewLocal returns a FileSystem over the host.
func NewLocal() *Local {
	return &Local{Fs: afero.NewOsFs()}
}

func (l *Local) Lstat(path string) (os.FileInfo, error) {
	if lstater, ok := l.Fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)

		return info, err
	}

	return l.Fs.Stat(path)
}

func (l *Local) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (l *Local) Symlink(target, path string) error {
	return os.Symlink(target, path)
}

func (l *Local) Link(target, path string) error {
	return os.Link(target, path)
}

func (l *Local) Lchown(path string, uid, gid int) error {
	return os.Lchown(path, uid, gid)
}

// WalkFunc visits one path with its lstat result.
type WalkFunc func(path string, info fs.FileInfo, err error) error

// Walk traverses root depth-first in directory-listing order without
// following symlinks, like the create walker needs.
func Walk(fsys FileSystem, root string, fn WalkFunc) error {
	info, err := fsys.Lstat(root)
	if err != nil {
		return fn(root, nil, err)
	}

	return walk(fsys, root, info, fn)
}

func walk(fsys FileSystem, path string, info fs.FileInfo, fn WalkFunc) error {
	if err := fn(path, info, nil); err != nil {
		if err == fs.SkipDir {
			return nil
		}

		return err
	}

	if !info.IsDir() {
		return nil
	}

	entries, err := afero.ReadDir(fsys, path)
	if err != nil {
		return fn(path, info, err)
	}

	for _, entry := range entries {
		child := path + "/" + entry.Name()

		childInfo, err := fsys.Lstat(child)
		if err != nil {
			if err := fn(child, nil, err); err != nil {
				return err
			}

			continue
		}

		if err := walk(fsys, child, childInfo, fn); err != nil {
			return err
		}
	}

	return nil
}

package fs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

type OSFS struct{}

func NewOSFS() OSFS {
	return OSFS{}
}

func (OSFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

// WriteFileAtomic writes data to a temporary sibling and renames it over
// path, so readers see either the old or the new content. The existing file
// mode is kept.
func (OSFS) WriteFileAtomic(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return eris.Wrap(err, "fs: create temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return eris.Wrap(err, "fs: write temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return eris.Wrap(err, "fs: sync temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return eris.Wrap(err, "fs: close temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return eris.Wrap(err, "fs: replace file")
	}
	return nil
}

// CopyFile copies src to dst, creating parent directories and keeping the
// source mode.
func (OSFS) CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return dstFile.Sync()
}

package vfs

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DirectoryDriver exposes a host directory. Element lookup ignores case,
// database files reference each other with whatever case the editor used.
type DirectoryDriver struct {
	path string
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

func (dd *DirectoryDriver) Name() string      { return filepath.Base(dd.path) }
func (dd *DirectoryDriver) IsDirectory() bool { return true }
func (dd *DirectoryDriver) Path() string      { return dd.path }

func (dd *DirectoryDriver) List() ([]string, error) {
	fileinfos, err := ioutil.ReadDir(dd.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error getting directory '%s' info", dd.path)
	}
	result := make([]string, 0, len(fileinfos))
	for _, f := range fileinfos {
		result = append(result, f.Name())
	}
	return result, nil
}

// resolve returns the on-disk name matching name case-insensitively
func (dd *DirectoryDriver) resolve(name string) (string, error) {
	if _, err := os.Stat(filepath.Join(dd.path, name)); err == nil {
		return name, nil
	}
	list, err := dd.List()
	if err != nil {
		return "", err
	}
	for _, n := range list {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	return "", errors.Wrapf(os.ErrNotExist, "'%s' not found in '%s'", name, dd.path)
}

func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	found, err := dd.resolve(name)
	if err != nil {
		return nil, err
	}
	newPath := filepath.Join(dd.path, found)
	s, err := os.Stat(newPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Stat error")
	}
	if s.IsDir() {
		return NewDirectoryDriver(newPath), nil
	}
	return NewDirectoryDriverFile(newPath), nil
}

func (dd *DirectoryDriver) Add(e Element) error {
	path := filepath.Join(dd.path, e.Name())
	if e.IsDirectory() {
		return os.Mkdir(path, os.ModePerm)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.Wrapf(err, "file '%s' creation failure", path)
	}
	return f.Close()
}

func (dd *DirectoryDriver) Remove(name string) error {
	found, err := dd.resolve(name)
	if err != nil {
		return err
	}
	return os.Remove(filepath.Join(dd.path, found))
}

type DirectoryDriverFile struct {
	path string
	f    *os.File
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{path: path}
}

func (ddf *DirectoryDriverFile) Name() string      { return filepath.Base(ddf.path) }
func (ddf *DirectoryDriverFile) IsDirectory() bool { return false }
func (ddf *DirectoryDriverFile) Path() string      { return ddf.path }

func (ddf *DirectoryDriverFile) Size() int64 {
	stat, err := os.Stat(ddf.path)
	if err != nil {
		return 0
	}
	return stat.Size()
}

func (ddf *DirectoryDriverFile) Open(readonly bool) error {
	if ddf.f != nil {
		return errors.Errorf("File '%s' already opened", ddf.path)
	}
	flags := os.O_RDWR
	if readonly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(ddf.path, flags, 0)
	if err != nil {
		return errors.Wrapf(err, "os.Open('%s')", ddf.path)
	}
	ddf.f = f
	return nil
}

func (ddf *DirectoryDriverFile) Close() error {
	if ddf.f == nil {
		return nil
	}
	err := ddf.f.Close()
	ddf.f = nil
	return errors.Wrapf(err, "os.File.Close('%s')", ddf.path)
}

func (ddf *DirectoryDriverFile) Reader() (*io.SectionReader, error) {
	if ddf.f == nil {
		return nil, errors.Errorf("First you need to open file")
	}
	return io.NewSectionReader(ddf.f, 0, ddf.Size()), nil
}

// Copy replaces the file content
func (ddf *DirectoryDriverFile) Copy(src io.Reader) error {
	ddf.Close()

	f, err := os.Create(ddf.path)
	if err != nil {
		return errors.Wrapf(err, "os.Create('%s')", ddf.path)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return errors.Wrapf(err, "Copy to '%s'", ddf.path)
	}
	return nil
}

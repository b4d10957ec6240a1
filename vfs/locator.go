package vfs

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Locator finds database files by name across several directories. The
// first directory holding a matching name wins; new files are created in
// the first directory.
type Locator struct {
	dirs []Directory
}

func NewLocator(dirs ...Directory) *Locator {
	return &Locator{dirs: dirs}
}

func NewLocatorFromPaths(paths []string) *Locator {
	dirs := make([]Directory, 0, len(paths))
	for _, p := range paths {
		dirs = append(dirs, NewDirectoryDriver(p))
	}
	return NewLocator(dirs...)
}

func (l *Locator) Find(name string) (File, error) {
	for _, d := range l.dirs {
		if f, err := DirectoryGetFile(d, name); err == nil {
			return f, nil
		}
	}
	return nil, errors.Wrapf(os.ErrNotExist, "Database file '%s' not found in resource paths", name)
}

// Open returns a reader over the located file. Closer must be called
// when the reader is no longer used.
func (l *Locator) Open(name string) (*io.SectionReader, io.Closer, error) {
	f, err := l.Find(name)
	if err != nil {
		return nil, nil, err
	}
	r, err := OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, nil, err
	}
	return r, f, nil
}

// Create writes src into name, overwriting an existing file of any case
func (l *Locator) Create(name string, src io.Reader) error {
	if len(l.dirs) == 0 {
		return errors.Errorf("No resource paths to create '%s' in", name)
	}
	f, err := l.Find(name)
	if err != nil {
		d := l.dirs[0]
		if err := d.Add(NewDirectoryDriverFile(name)); err != nil {
			return err
		}
		if f, err = DirectoryGetFile(d, name); err != nil {
			return err
		}
	}
	return OpenFileAndCopy(f, src)
}

// List returns every file name visible through the locator, shadowed
// names (same name ignoring case in a later directory) are skipped
func (l *Locator) List() []string {
	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, d := range l.dirs {
		names, err := d.List()
		if err != nil {
			continue
		}
		for _, n := range names {
			key := strings.ToLower(n)
			if seen[key] {
				continue
			}
			if e, err := d.GetElement(n); err != nil || e.IsDirectory() {
				continue
			}
			seen[key] = true
			result = append(result, n)
		}
	}
	sort.Strings(result)
	return result
}

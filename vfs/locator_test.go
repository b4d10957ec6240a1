package vfs

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestLocatorFindsIgnoringCase(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(second, "Shock2.GAM"), []byte("gam"), 0666); err != nil {
		t.Fatal(err)
	}

	l := NewLocatorFromPaths([]string{first, second})
	r, closer, err := l.Open("shock2.gam")
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	data, _ := ioutil.ReadAll(r)
	if string(data) != "gam" {
		t.Errorf("read %q", data)
	}

	if _, _, err := l.Open("missing.mis"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestLocatorCreate(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	l := NewLocatorFromPaths([]string{first, second})

	if err := l.Create("out.sav", bytes.NewReader([]byte("one"))); err != nil {
		t.Fatal(err)
	}
	if err := l.Create("OUT.SAV", bytes.NewReader([]byte("two"))); err != nil {
		t.Fatal(err)
	}

	data, err := ioutil.ReadFile(filepath.Join(first, "out.sav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("existing file not overwritten: %q", data)
	}

	if list := l.List(); len(list) != 1 || list[0] != "out.sav" {
		t.Errorf("List() = %v", list)
	}
}

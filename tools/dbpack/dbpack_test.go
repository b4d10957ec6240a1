package main

import (
	"bufio"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
)

func TestMakeDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(dir, "000_ObjVec.bin"), []byte{0xf8, 0xff, 0xff, 0xff, 8, 0, 0, 0}, 0666); err != nil {
		t.Fatal(err)
	}
	meta := `# comment
ObjVec       | 0    | 2    | 000_ObjVec.bin
`
	fg := MakeDatabase("out.mis", dir, bufio.NewReader(strings.NewReader(meta)))

	h, err := fg.Header("ObjVec")
	if err != nil {
		t.Fatal(err)
	}
	if h.VersionMajor != 0 || h.VersionMinor != 2 || fg.Size("ObjVec") != 8 {
		t.Errorf("header %+v size %d", h, fg.Size("ObjVec"))
	}
	if len(fg.List()) != 1 {
		t.Errorf("chunks %v", fg.List())
	}
}

package darkdb

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/pkg/errors"
)

func buildGroup(t *testing.T, chunks map[string][]byte) *FileGroup {
	t.Helper()

	src := New("test.mis")
	for name, data := range chunks {
		w, err := src.CreateFile(name, 2, 1)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}

	var out bytes.Buffer
	if _, err := src.WriteTo(&out); err != nil {
		t.Fatal(err)
	}

	fg, err := Open("test.mis", bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatal(err)
	}
	return fg
}

func TestWriteAndOpen(t *testing.T) {
	fg := buildGroup(t, map[string][]byte{
		"GAM_FILE":  []byte("shock2.gam\x00"),
		"ObjVec":    {1, 2, 3, 4, 5, 6, 7, 8, 9},
		"L$MetaProp": {},
	})

	if list := fg.List(); len(list) != 3 || list[0] != "GAM_FILE" || list[2] != "ObjVec" {
		t.Errorf("List() = %v", list)
	}

	r, err := fg.GetFile("ObjVec")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := ioutil.ReadAll(r)
	if !bytes.Equal(data, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("ObjVec data %v", data)
	}

	h, err := fg.Header("ObjVec")
	if err != nil {
		t.Fatal(err)
	}
	if h.VersionMajor != 2 || h.VersionMinor != 1 {
		t.Errorf("header %+v", h)
	}

	if fg.Size("L$MetaProp") != 0 {
		t.Errorf("empty chunk size %d", fg.Size("L$MetaProp"))
	}

	name, err := fg.ReadNameTag("GAM_FILE")
	if err != nil {
		t.Fatal(err)
	}
	if name != "shock2.gam" {
		t.Errorf("ReadNameTag = %q", name)
	}
}

func TestGetFileTruncatesName(t *testing.T) {
	fg := buildGroup(t, map[string][]byte{"P$SymbolicN": {42}})

	if !fg.HasFile("P$SymbolicName") {
		t.Error("long name lookup should use the first 11 characters")
	}
}

func TestMissingChunk(t *testing.T) {
	fg := New("empty")
	if _, err := fg.GetFile("FILE_TYPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFile error = %v; expected ErrNotFound", err)
	}
	if err := fg.DeleteFile("FILE_TYPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteFile error = %v; expected ErrNotFound", err)
	}
}

func TestCreateFileErrors(t *testing.T) {
	fg := New("x")
	if _, err := fg.CreateFile("FILE_TYPE", 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := fg.CreateFile("FILE_TYPE", 0, 1); err == nil {
		t.Error("duplicate chunk accepted")
	}
	if _, err := fg.CreateFile("", 0, 1); err == nil {
		t.Error("empty chunk name accepted")
	}

	// long names collide after cutting
	if _, err := fg.CreateFile("P$RenderAlpha", 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := fg.CreateFile("P$RenderAlp", 0, 1); err == nil {
		t.Error("chunk colliding after name cut accepted")
	}
	if h, _ := fg.Header("P$RenderAlpha"); h.Name != "P$RenderAlp" {
		t.Errorf("stored name %q", h.Name)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	garbage := make([]byte, HEADER_SIZE+16)
	if _, err := Open("garbage", bytes.NewReader(garbage), int64(len(garbage))); err == nil {
		t.Error("file without dead beef accepted")
	}
}

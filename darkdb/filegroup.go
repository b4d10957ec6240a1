package darkdb

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/utils"
)

const (
	HEADER_SIZE       = 4 + 4 + 4 + 256 + 4
	CHUNK_HEADER_SIZE = 12 + 4 + 4 + 4
	INV_ITEM_SIZE     = 12 + 4 + 4
	CHUNK_NAME_SIZE   = 12
	// last byte of the name buffer is the terminator
	MAX_CHUNK_NAME = CHUNK_NAME_SIZE - 1

	DEAD_BEEF = 0xEFBEADDE
)

var ErrNotFound = errors.New("chunk not found")

type ChunkHeader struct {
	Name         string
	VersionMajor uint32
	VersionMinor uint32
}

type chunk struct {
	header ChunkHeader
	// exactly one of the two is set: data read from a source or created in memory
	src *io.SectionReader
	buf *bytes.Buffer
}

func (c *chunk) size() int64 {
	if c.buf != nil {
		return int64(c.buf.Len())
	}
	return c.src.Size()
}

func (c *chunk) reader() *io.SectionReader {
	if c.buf != nil {
		b := c.buf.Bytes()
		return io.NewSectionReader(bytes.NewReader(b), 0, int64(len(b)))
	}
	return io.NewSectionReader(c.src, 0, c.src.Size())
}

// FileGroup is a Dark database (.mis/.gam/.sav/.vbr/.cow): a set of named
// chunks addressed through an inventory at the end of the file.
type FileGroup struct {
	name   string
	chunks map[string]*chunk
}

func New(name string) *FileGroup {
	return &FileGroup{name: name, chunks: make(map[string]*chunk)}
}

func chunkKey(name string) string {
	if len(name) > MAX_CHUNK_NAME {
		return name[:MAX_CHUNK_NAME]
	}
	return name
}

func readChunkHeader(buf []byte) ChunkHeader {
	return ChunkHeader{
		Name:         utils.BytesToString(buf[0:12]),
		VersionMajor: binary.LittleEndian.Uint32(buf[12:16]),
		VersionMinor: binary.LittleEndian.Uint32(buf[16:20]),
	}
}

func marshalChunkHeader(h *ChunkHeader) ([]byte, error) {
	buf := make([]byte, CHUNK_HEADER_SIZE)
	name, err := utils.StringToBytesBuffer(h.Name, CHUNK_NAME_SIZE, true)
	if err != nil {
		return nil, err
	}
	copy(buf[0:12], name)
	binary.LittleEndian.PutUint32(buf[12:16], h.VersionMajor)
	binary.LittleEndian.PutUint32(buf[16:20], h.VersionMinor)
	return buf, nil
}

func Open(name string, r io.ReaderAt, size int64) (*FileGroup, error) {
	fg := New(name)

	var hdr [HEADER_SIZE]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, errors.Wrapf(err, "Failed to read header of %q", name)
	}
	if magic := binary.LittleEndian.Uint32(hdr[HEADER_SIZE-4:]); magic != DEAD_BEEF {
		return nil, errors.Errorf("%q is not a Dark database file. Dead beef mismatch (%.8x)", name, magic)
	}

	invOffset := int64(binary.LittleEndian.Uint32(hdr[0:4]))
	if invOffset+4 > size {
		return nil, errors.Errorf("%q inventory offset 0x%x is out of file (size 0x%x)", name, invOffset, size)
	}

	var countBuf [4]byte
	if _, err := r.ReadAt(countBuf[:], invOffset); err != nil {
		return nil, errors.Wrapf(err, "Failed to read inventory of %q", name)
	}
	count := int64(binary.LittleEndian.Uint32(countBuf[:]))
	if invOffset+4+count*INV_ITEM_SIZE > size {
		return nil, errors.Errorf("%q inventory of %d chunks does not fit the file", name, count)
	}

	inventory := make([]byte, count*INV_ITEM_SIZE)
	if _, err := r.ReadAt(inventory, invOffset+4); err != nil {
		return nil, errors.Wrapf(err, "Failed to read inventory items of %q", name)
	}

	var chdr [CHUNK_HEADER_SIZE]byte
	for i := int64(0); i < count; i++ {
		item := inventory[i*INV_ITEM_SIZE : (i+1)*INV_ITEM_SIZE]
		itemName := utils.BytesToString(item[0:12])
		offset := int64(binary.LittleEndian.Uint32(item[12:16]))
		length := int64(binary.LittleEndian.Uint32(item[16:20]))

		if offset+CHUNK_HEADER_SIZE+length > size {
			return nil, errors.Errorf("Chunk %q of %q is out of file", itemName, name)
		}
		if _, err := r.ReadAt(chdr[:], offset); err != nil {
			return nil, errors.Wrapf(err, "Failed to read chunk %q header", itemName)
		}
		h := readChunkHeader(chdr[:])
		if h.Name != itemName {
			return nil, errors.Errorf("Inventory chunk name mismatch: %q - %q", h.Name, itemName)
		}

		fg.chunks[chunkKey(itemName)] = &chunk{
			header: h,
			src:    io.NewSectionReader(r, offset+CHUNK_HEADER_SIZE, length),
		}
	}

	return fg, nil
}

func (fg *FileGroup) Name() string { return fg.name }

func (fg *FileGroup) HasFile(name string) bool {
	_, ok := fg.chunks[chunkKey(name)]
	return ok
}

// GetFile returns a fresh reader positioned at the chunk start
func (fg *FileGroup) GetFile(name string) (*io.SectionReader, error) {
	c, ok := fg.chunks[chunkKey(name)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "File named %q was not found in %q", name, fg.name)
	}
	return c.reader(), nil
}

func (fg *FileGroup) Header(name string) (ChunkHeader, error) {
	c, ok := fg.chunks[chunkKey(name)]
	if !ok {
		return ChunkHeader{}, errors.Wrapf(ErrNotFound, "File named %q was not found in %q", name, fg.name)
	}
	return c.header, nil
}

func (fg *FileGroup) Size(name string) int64 {
	if c, ok := fg.chunks[chunkKey(name)]; ok {
		return c.size()
	}
	return -1
}

func (fg *FileGroup) List() []string {
	names := make([]string, 0, len(fg.chunks))
	for name := range fg.chunks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateFile adds an empty in-memory chunk and returns its buffer. Long
// names are cut the same way lookups cut them.
func (fg *FileGroup) CreateFile(name string, major, minor uint32) (*bytes.Buffer, error) {
	if name == "" {
		return nil, errors.Errorf("Empty chunk name")
	}
	key := chunkKey(name)
	if _, exists := fg.chunks[key]; exists {
		return nil, errors.Errorf("Chunk already exists: %q", key)
	}
	c := &chunk{
		header: ChunkHeader{Name: key, VersionMajor: major, VersionMinor: minor},
		buf:    &bytes.Buffer{},
	}
	fg.chunks[key] = c
	return c.buf, nil
}

func (fg *FileGroup) DeleteFile(name string) error {
	key := chunkKey(name)
	if _, ok := fg.chunks[key]; !ok {
		return errors.Wrapf(ErrNotFound, "File requested for deletion was not found: %q", name)
	}
	delete(fg.chunks, key)
	return nil
}

// WriteTo serializes the group: header, chunks sorted by name, inventory
func (fg *FileGroup) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, HEADER_SIZE))

	names := fg.List()
	inventory := make([]byte, 4+len(names)*INV_ITEM_SIZE)
	binary.LittleEndian.PutUint32(inventory[0:4], uint32(len(names)))

	for i, name := range names {
		c := fg.chunks[name]
		offset := buf.Len()

		hdr, err := marshalChunkHeader(&c.header)
		if err != nil {
			return 0, errors.Wrapf(err, "Failed to marshal chunk %q header", name)
		}
		buf.Write(hdr)
		length, err := io.Copy(&buf, c.reader())
		if err != nil {
			return 0, errors.Wrapf(err, "Failed to copy chunk %q", name)
		}

		item := inventory[4+i*INV_ITEM_SIZE : 4+(i+1)*INV_ITEM_SIZE]
		copy(item[0:12], hdr[0:12])
		binary.LittleEndian.PutUint32(item[12:16], uint32(offset))
		binary.LittleEndian.PutUint32(item[16:20], uint32(length))
	}

	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(raw[4:8], 0)
	binary.LittleEndian.PutUint32(raw[8:12], 1)
	binary.LittleEndian.PutUint32(raw[HEADER_SIZE-4:HEADER_SIZE], DEAD_BEEF)

	n, err := w.Write(raw)
	if err != nil {
		return int64(n), errors.Wrapf(err, "Failed to write %q", fg.name)
	}
	m, err := w.Write(inventory)
	return int64(n + m), errors.Wrapf(err, "Failed to write %q inventory", fg.name)
}

// ReadNameTag reads a zero terminated string stored as a whole chunk
// (GAM_FILE, MIS_FILE).
func (fg *FileGroup) ReadNameTag(name string) (string, error) {
	r, err := fg.GetFile(name)
	if err != nil {
		return "", err
	}
	data := make([]byte, r.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return "", errors.Wrapf(err, "Failed to read %q", name)
	}
	return utils.BytesToString(data), nil
}

package link

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

const (
	// id, src, dest, flavor
	LINK_RECORD_SIZE = 4 + 4 + 4 + 2

	chunkVersionMajor = 2
	chunkVersionMinor = 0
)

type Relation struct {
	name    string
	flavor  uint32
	hidden  bool
	storage DataStorage

	links map[LinkID]Link
	bySrc map[object.ID]map[LinkID]bool
	byDst map[object.ID]map[LinkID]bool
	// highest index used per concreteness
	maxIndex [16]uint32

	listeners broadcast.Source[ChangeMsg]
}

func newRelation(name string, flavor uint32, storage DataStorage, hidden bool) *Relation {
	r := &Relation{
		name:    name,
		flavor:  flavor,
		hidden:  hidden,
		storage: storage,
	}
	r.reset()
	return r
}

func (r *Relation) reset() {
	r.links = make(map[LinkID]Link)
	r.bySrc = make(map[object.ID]map[LinkID]bool)
	r.byDst = make(map[object.ID]map[LinkID]bool)
	r.maxIndex = [16]uint32{}
	if r.storage != nil {
		r.storage.Clear()
	}
}

func (r *Relation) Name() string         { return r.name }
func (r *Relation) Flavor() uint32       { return r.flavor }
func (r *Relation) Hidden() bool         { return r.hidden }
func (r *Relation) Len() int             { return len(r.links) }
func (r *Relation) Storage() DataStorage { return r.storage }

func (r *Relation) RegisterListener(l broadcast.Listener[ChangeMsg], priority int) broadcast.ListenerID {
	return r.listeners.Register(l, priority)
}

func (r *Relation) UnregisterListener(id broadcast.ListenerID) bool {
	return r.listeners.Unregister(id)
}

func (r *Relation) hasData() bool {
	return r.storage != nil && r.storage.Size() > 0
}

func linkConcreteness(src, dst object.ID) uint32 {
	if src.IsConcrete() || dst.IsConcrete() {
		return 1
	}
	return 0
}

func addToIndex(index map[object.ID]map[LinkID]bool, obj object.ID, id LinkID) {
	m, ok := index[obj]
	if !ok {
		m = make(map[LinkID]bool)
		index[obj] = m
	}
	m[id] = true
}

func removeFromIndex(index map[object.ID]map[LinkID]bool, obj object.ID, id LinkID) {
	if m, ok := index[obj]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(index, obj)
		}
	}
}

func (r *Relation) insert(l Link) {
	r.links[l.ID] = l
	addToIndex(r.bySrc, l.Src, l.ID)
	addToIndex(r.byDst, l.Dst, l.ID)
	c := l.ID.Concrete()
	if idx := l.ID.Index(); idx > r.maxIndex[c] {
		r.maxIndex[c] = idx
	}
}

// Create adds a link from src to dst. fields initialize the link data,
// missing fields are zero.
func (r *Relation) Create(src, dst object.ID, fields map[string]value.Value) (LinkID, error) {
	if src == object.None || dst == object.None {
		return 0, errors.Errorf("Relation %s: link endpoints must be objects (%d -> %d)", r.name, src, dst)
	}

	c := linkConcreteness(src, dst)
	if r.maxIndex[c] >= 0xFFFF {
		return 0, errors.Errorf("Relation %s: out of link ids", r.name)
	}
	id := MakeID(r.flavor, c, r.maxIndex[c]+1)

	if r.hasData() {
		if err := r.storage.Create(id, fields); err != nil {
			return 0, errors.Wrapf(err, "Relation %s: link data", r.name)
		}
	} else if len(fields) != 0 {
		return 0, errors.Errorf("Relation %s has no link data", r.name)
	}

	l := Link{ID: id, Src: src, Dst: dst, Flavor: r.flavor}
	prevMax := r.maxIndex[c]
	r.insert(l)
	if err := r.listeners.Broadcast(ChangeMsg{Change: Added, LinkID: id, Link: l}); err != nil {
		r.rollback(l, prevMax)
		return 0, err
	}
	return id, nil
}

// rollback takes back an insert some listener refused
func (r *Relation) rollback(l Link, prevMax uint32) {
	delete(r.links, l.ID)
	removeFromIndex(r.bySrc, l.Src, l.ID)
	removeFromIndex(r.byDst, l.Dst, l.ID)
	r.maxIndex[l.ID.Concrete()] = prevMax
	if r.hasData() {
		r.storage.Destroy(l.ID)
	}
}

func (r *Relation) Remove(id LinkID) error {
	l, ok := r.links[id]
	if !ok {
		return errors.Wrapf(ErrNoSuchLink, "Relation %s: cannot remove %v", r.name, id)
	}

	delete(r.links, id)
	removeFromIndex(r.bySrc, l.Src, id)
	removeFromIndex(r.byDst, l.Dst, id)
	if c := id.Concrete(); r.maxIndex[c] == id.Index() {
		r.maxIndex[c]--
	}
	if r.hasData() {
		r.storage.Destroy(id)
	}

	return r.listeners.Broadcast(ChangeMsg{Change: Removed, LinkID: id, Link: l})
}

func (r *Relation) GetLink(id LinkID) (Link, error) {
	l, ok := r.links[id]
	if !ok {
		return Link{}, errors.Wrapf(ErrNoSuchLink, "Relation %s: %v", r.name, id)
	}
	return l, nil
}

func (r *Relation) GetLinkField(id LinkID, field string) (value.Value, error) {
	if _, ok := r.links[id]; !ok {
		return value.Value{}, errors.Wrapf(ErrNoSuchLink, "Relation %s: %v", r.name, id)
	}
	if !r.hasData() {
		return value.Value{}, errors.Errorf("Relation %s has no link data", r.name)
	}
	return r.storage.GetField(id, field)
}

func (r *Relation) SetLinkField(id LinkID, field string, v value.Value) error {
	if _, ok := r.links[id]; !ok {
		return errors.Wrapf(ErrNoSuchLink, "Relation %s: %v", r.name, id)
	}
	if !r.hasData() {
		return errors.Errorf("Relation %s has no link data", r.name)
	}
	if err := r.storage.SetField(id, field, v); err != nil {
		return err
	}
	return r.listeners.Broadcast(ChangeMsg{Change: Changed, LinkID: id, Link: r.links[id]})
}

// GetAllLinks returns links from src to dst sorted by id. Zero src or dst
// matches any object.
func (r *Relation) GetAllLinks(src, dst object.ID) []Link {
	var candidates map[LinkID]bool
	switch {
	case src != object.None:
		candidates = r.bySrc[src]
	case dst != object.None:
		candidates = r.byDst[dst]
	default:
		candidates = make(map[LinkID]bool, len(r.links))
		for id := range r.links {
			candidates[id] = true
		}
	}

	result := make([]Link, 0, len(candidates))
	for id := range candidates {
		l := r.links[id]
		if dst != object.None && l.Dst != dst {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// GetOneLink fails when more than one link matches
func (r *Relation) GetOneLink(src, dst object.ID) (Link, error) {
	links := r.GetAllLinks(src, dst)
	switch len(links) {
	case 0:
		return Link{}, errors.Wrapf(ErrNoSuchLink, "Relation %s: no link %d -> %d", r.name, src, dst)
	case 1:
		return links[0], nil
	}
	return Link{}, errors.Errorf("Relation %s: %d links match %d -> %d", r.name, len(links), src, dst)
}

func (r *Relation) Clear() error {
	r.reset()
	return r.listeners.Broadcast(ChangeMsg{Change: RelationCleared})
}

// ObjectDestroyed removes every link touching id
func (r *Relation) ObjectDestroyed(id object.ID) error {
	for _, l := range r.GetAllLinks(id, object.None) {
		if err := r.Remove(l.ID); err != nil {
			return err
		}
	}
	for _, l := range r.GetAllLinks(object.None, id) {
		if err := r.Remove(l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relation) linkChunk() string { return "L$" + r.name }
func (r *Relation) dataChunk() string { return "LD$" + r.name }

func maskIncludesLink(mask object.Mask, id LinkID) bool {
	if id.Concrete() == 0 {
		return mask&object.MaskArchetypes != 0
	}
	return mask&object.MaskConcretes != 0
}

func readChunk(db database.FileGroup, name string) ([]byte, error) {
	f, err := db.GetFile(name)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadAll(f)
}

// Load reads the L$ and LD$ chunks, links outside mask are skipped
func (r *Relation) Load(db database.FileGroup, mask object.Mask) error {
	if !db.HasFile(r.linkChunk()) {
		log.Printf("[link] %s: no %s chunk in %q", r.name, r.linkChunk(), db.Name())
		return nil
	}

	linkData, err := readChunk(db, r.linkChunk())
	if err != nil {
		return err
	}

	records := make(map[LinkID][]byte)
	if db.HasFile(r.dataChunk()) {
		raw, err := readChunk(db, r.dataChunk())
		if err != nil {
			return err
		}
		if len(raw) >= 4 {
			dsize := int(binary.LittleEndian.Uint32(raw))
			if dsize > 0 && !r.hasData() {
				log.Printf("[link] %s: data present (%d bytes each) but relation has no data type", r.name, dsize)
			}
			if dsize > 0 && r.hasData() {
				if dsize != r.storage.Size() {
					log.Printf("[link] %s: data sizes differ, chunk %d, relation %d", r.name, dsize, r.storage.Size())
				}
				for pos := 4; pos+4+dsize <= len(raw); pos += 4 + dsize {
					id := LinkID(binary.LittleEndian.Uint32(raw[pos:]))
					records[id] = raw[pos+4 : pos+4+dsize]
				}
			}
		}
	} else if r.hasData() {
		log.Printf("[link] %s: %s chunk missing, data zeroed", r.name, r.dataChunk())
	}

	loaded := 0
	for pos := 0; pos+LINK_RECORD_SIZE <= len(linkData); pos += LINK_RECORD_SIZE {
		rec := linkData[pos:]
		l := Link{
			ID:     LinkID(binary.LittleEndian.Uint32(rec[0:4])),
			Src:    object.ID(int32(binary.LittleEndian.Uint32(rec[4:8]))),
			Dst:    object.ID(int32(binary.LittleEndian.Uint32(rec[8:12]))),
			Flavor: uint32(binary.LittleEndian.Uint16(rec[12:14])),
		}
		if !maskIncludesLink(mask, l.ID) {
			continue
		}
		if l.ID.Flavor() != r.flavor {
			return errors.Errorf("Relation %s (flavor %d): %v has foreign flavor", r.name, r.flavor, l.ID)
		}
		if _, exists := r.links[l.ID]; exists {
			log.Printf("[link] %s: conflicting %v, link already exists", r.name, l.ID)
			continue
		}

		if r.hasData() {
			data, ok := records[l.ID]
			if !ok {
				data = make([]byte, r.storage.Size())
			} else if len(data) < r.storage.Size() {
				data = append(append([]byte(nil), data...), make([]byte, r.storage.Size()-len(data))...)
			}
			if err := r.storage.Read(l.ID, data); err != nil {
				return errors.Wrapf(err, "Relation %s", r.name)
			}
		}

		prevMax := r.maxIndex[l.ID.Concrete()]
		r.insert(l)
		if err := r.listeners.Broadcast(ChangeMsg{Change: Added, LinkID: l.ID, Link: l}); err != nil {
			log.Printf("[link] %s: skipping %v (%v -> %v): %v", r.name, l.ID, l.Src, l.Dst, err)
			r.rollback(l, prevMax)
			continue
		}
		loaded++
	}

	log.Printf("[link] %s: loaded %d links from %q", r.name, loaded, db.Name())
	return nil
}

func (r *Relation) Save(w database.ChunkWriter, mask object.Mask) error {
	lw, err := w.CreateFile(r.linkChunk(), chunkVersionMajor, chunkVersionMinor)
	if err != nil {
		return err
	}
	dw, err := w.CreateFile(r.dataChunk(), chunkVersionMajor, chunkVersionMinor)
	if err != nil {
		return err
	}

	dsize := 0
	if r.hasData() {
		dsize = r.storage.Size()
	}
	binary.Write(dw, binary.LittleEndian, uint32(dsize))

	var rec [LINK_RECORD_SIZE]byte
	for _, l := range r.GetAllLinks(object.None, object.None) {
		if !maskIncludesLink(mask, l.ID) {
			continue
		}
		binary.LittleEndian.PutUint32(rec[0:4], uint32(l.ID))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(int32(l.Src)))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(int32(l.Dst)))
		binary.LittleEndian.PutUint16(rec[12:14], uint16(l.Flavor))
		lw.Write(rec[:])

		if dsize > 0 {
			var buf bytes.Buffer
			if err := r.storage.Write(l.ID, &buf); err != nil {
				return errors.Wrapf(err, "Relation %s", r.name)
			}
			binary.Write(dw, binary.LittleEndian, uint32(l.ID))
			dw.Write(buf.Bytes())
		}
	}
	return nil
}

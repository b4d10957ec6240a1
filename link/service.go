package link

import (
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/utils"
)

const (
	RelationsChunk     = "Relations"
	RELATION_NAME_SIZE = 32

	relationsVersionMajor = 1
	relationsVersionMinor = 0
)

// Service owns every relation. Flavors are assigned in creation order and
// remapped to the order stored in the Relations chunk of loaded databases.
type Service struct {
	relations map[string]*Relation
	byFlavor  map[uint32]*Relation
}

func NewService() *Service {
	return &Service{
		relations: make(map[string]*Relation),
		byFlavor:  make(map[uint32]*Relation),
	}
}

func (s *Service) CreateRelation(name string, storage DataStorage, hidden bool) (*Relation, error) {
	if name == "" || strings.HasPrefix(name, "~") {
		return nil, errors.Errorf("Invalid relation name %q, '~' prefix is reserved for inverse relations", name)
	}
	if _, exists := s.relations[name]; exists {
		return nil, errors.Errorf("Relation %q already exists", name)
	}

	flavor := uint32(len(s.relations) + 1)
	for s.byFlavor[flavor] != nil {
		flavor++
	}

	r := newRelation(name, flavor, storage, hidden)
	s.relations[name] = r
	s.byFlavor[flavor] = r
	return r, nil
}

func (s *Service) GetRelation(name string) (*Relation, error) {
	r, ok := s.relations[name]
	if !ok {
		return nil, errors.Errorf("Relation %q not found", name)
	}
	return r, nil
}

func (s *Service) GetRelationByFlavor(flavor uint32) (*Relation, error) {
	r, ok := s.byFlavor[flavor]
	if !ok {
		return nil, errors.Errorf("Relation with flavor %d not found", flavor)
	}
	return r, nil
}

// Relations returns relations ordered by flavor
func (s *Service) Relations() []*Relation {
	result := make([]*Relation, 0, len(s.relations))
	for _, r := range s.relations {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].flavor < result[j].flavor })
	return result
}

func (s *Service) mapFlavor(r *Relation, flavor uint32) error {
	if r.flavor == flavor {
		return nil
	}
	other := s.byFlavor[flavor]
	if r.Len() != 0 || (other != nil && other.Len() != 0) {
		return errors.Errorf("Cannot map relation %q to flavor %d, links already loaded", r.name, flavor)
	}

	old := r.flavor
	delete(s.byFlavor, old)
	if other != nil {
		other.flavor = old
		s.byFlavor[old] = other
	}
	r.flavor = flavor
	s.byFlavor[flavor] = r
	return nil
}

func (s *Service) loadRelationsMap(db database.FileGroup) ([]*Relation, error) {
	if !db.HasFile(RelationsChunk) {
		log.Printf("[link] No %s chunk in %q, using builtin flavors", RelationsChunk, db.Name())
		return s.Relations(), nil
	}

	data, err := readChunk(db, RelationsChunk)
	if err != nil {
		return nil, err
	}

	result := make([]*Relation, 0)
	for i := 0; (i+1)*RELATION_NAME_SIZE <= len(data); i++ {
		name := utils.BytesToString(data[i*RELATION_NAME_SIZE : (i+1)*RELATION_NAME_SIZE])
		r, ok := s.relations[name]
		if !ok {
			log.Printf("[link] Relation %q (flavor %d) of %q is not defined, skipping", name, i+1, db.Name())
			continue
		}
		if err := s.mapFlavor(r, uint32(i+1)); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// OnDatabaseChange is the link database listener (database.PriorityLink)
func (s *Service) OnDatabaseChange(msg *database.ChangeMsg) error {
	mask := object.MaskFromDatabase(msg.Mask, msg.DBTarget)

	switch msg.Change {
	case database.Dropping:
		return s.clear(mask)
	case database.Loading:
		if mask == 0 {
			return nil
		}
		relations, err := s.loadRelationsMap(msg.DB)
		if err != nil {
			return err
		}
		for _, r := range relations {
			if err := r.Load(msg.DB, mask); err != nil {
				return err
			}
		}
	case database.Saving:
		return s.save(msg.Target, mask)
	}
	return nil
}

func (s *Service) save(w database.ChunkWriter, mask object.Mask) error {
	rw, err := w.CreateFile(RelationsChunk, relationsVersionMajor, relationsVersionMinor)
	if err != nil {
		return err
	}
	for i, r := range s.Relations() {
		if r.flavor != uint32(i+1) {
			return errors.Errorf("Relation flavors are not contiguous at %q (%d)", r.name, r.flavor)
		}
		name, err := utils.StringToBytesBuffer(r.name, RELATION_NAME_SIZE, true)
		if err != nil {
			return err
		}
		rw.Write(name)
		if err := r.Save(w, mask); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) clear(mask object.Mask) error {
	for _, r := range s.Relations() {
		if mask == object.MaskAll {
			if err := r.Clear(); err != nil {
				return err
			}
			continue
		}
		for _, l := range r.GetAllLinks(object.None, object.None) {
			if maskIncludesLink(mask, l.ID) {
				if err := r.Remove(l.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// OnObjectMsg keeps relations consistent with the object system
func (s *Service) OnObjectMsg(msg object.Msg) error {
	switch msg.Type {
	case object.Destroyed:
		for _, r := range s.Relations() {
			if err := r.ObjectDestroyed(msg.ID); err != nil {
				return err
			}
		}
	case object.SystemCleared:
		return s.clear(object.MaskAll)
	}
	return nil
}

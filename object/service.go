package object

import (
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
)

// Service tracks allocated object IDs inside a growable [min, max) range
type Service struct {
	allocated map[ID]bool
	min, max  ID

	archetypes ArchetypeSetter
	listeners  broadcast.Source[Msg]
}

func NewService(archetypes ArchetypeSetter) *Service {
	return &Service{
		allocated:  make(map[ID]bool),
		archetypes: archetypes,
	}
}

func (s *Service) RegisterListener(l broadcast.Listener[Msg], priority int) broadcast.ListenerID {
	return s.listeners.Register(l, priority)
}

func (s *Service) UnregisterListener(id broadcast.ListenerID) bool {
	return s.listeners.Unregister(id)
}

func (s *Service) Min() ID { return s.min }
func (s *Service) Max() ID { return s.max }

// Grow widens the id range, it never shrinks
func (s *Service) Grow(min, max ID) {
	if min < s.min {
		s.min = min
	}
	if max > s.max {
		s.max = max
	}
}

func (s *Service) Exists(id ID) bool {
	return s.allocated[id]
}

// Objects returns every allocated id in ascending order
func (s *Service) Objects() []ID {
	ids := make([]ID, 0, len(s.allocated))
	for id := range s.allocated {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Service) Allocate(id ID) error {
	if id == None {
		return errors.Errorf("Cannot allocate object id 0")
	}
	if s.allocated[id] {
		return errors.Errorf("Object %v already exists", id)
	}
	s.Grow(id, id+1)
	s.allocated[id] = true
	return s.listeners.Broadcast(Msg{Type: Created, ID: id})
}

func (s *Service) freeID(archetype bool) ID {
	if archetype {
		for id := ID(-1); id >= s.min; id-- {
			if !s.allocated[id] {
				return id
			}
		}
		if s.min < 0 {
			return s.min - 1
		}
		return -1
	}
	for id := ID(1); id < s.max; id++ {
		if !s.allocated[id] {
			return id
		}
	}
	if s.max > 1 {
		return s.max
	}
	return 1
}

func (s *Service) create(archetype bool, parent ID) (ID, error) {
	if parent != None && !s.Exists(parent) {
		return None, errors.Wrapf(ErrNoSuchObject, "Given archetype %v does not exist", parent)
	}

	id := s.freeID(archetype)
	s.Grow(id, id+1)
	s.allocated[id] = true

	if parent != None && s.archetypes != nil {
		if err := s.archetypes.SetArchetype(id, parent); err != nil {
			delete(s.allocated, id)
			return None, err
		}
	}

	return id, s.listeners.Broadcast(Msg{Type: Created, ID: id})
}

// CreateArchetype allocates a new archetype deriving from parent (may be None)
func (s *Service) CreateArchetype(parent ID) (ID, error) {
	return s.create(true, parent)
}

// Create allocates a concrete object of the given archetype
func (s *Service) Create(archetype ID) (ID, error) {
	if !archetype.IsArchetype() {
		return None, errors.Errorf("%v is not an archetype", archetype)
	}
	return s.create(false, archetype)
}

func (s *Service) Destroy(id ID) error {
	if !s.allocated[id] {
		return errors.Wrapf(ErrNoSuchObject, "Cannot destroy %v", id)
	}
	delete(s.allocated, id)
	return s.listeners.Broadcast(Msg{Type: Destroyed, ID: id})
}

// Clear destroys the objects selected by mask. Clearing archetypes takes
// the concretes with them. A complete clear resets the range and sends a
// single SystemCleared instead of per object messages.
func (s *Service) Clear(mask Mask) error {
	if mask&MaskArchetypes != 0 {
		mask = MaskAll
	}

	if mask == MaskAll {
		log.Printf("[object] Clearing %d objects", len(s.allocated))
		s.allocated = make(map[ID]bool)
		s.min, s.max = 0, 0
		return s.listeners.Broadcast(Msg{Type: SystemCleared})
	}

	for _, id := range s.Objects() {
		if mask.Includes(id) {
			if err := s.Destroy(id); err != nil {
				return err
			}
		}
	}
	return nil
}

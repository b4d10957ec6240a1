package property

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/darkdb"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/inherit"
	"github.com/mogaika/dark_db_browser/object"
)

type Service struct {
	inherit    *inherit.Service
	properties map[string]*Property

	listeners broadcast.Source[ChangeMsg]
}

func NewService(inh *inherit.Service) *Service {
	return &Service{
		inherit:    inh,
		properties: make(map[string]*Property),
	}
}

func (s *Service) RegisterListener(l broadcast.Listener[ChangeMsg], priority int) broadcast.ListenerID {
	return s.listeners.Register(l, priority)
}

func (s *Service) UnregisterListener(id broadcast.ListenerID) bool {
	return s.listeners.Unregister(id)
}

func (s *Service) CreateProperty(def config.PropertyDef) (*Property, error) {
	if _, exists := s.properties[def.Name]; exists {
		return nil, errors.Errorf("Property %q already exists", def.Name)
	}
	// chunk names are cut by the container, compare what gets stored
	chunk := chunkKey("P$" + def.ChunkName())
	for _, p := range s.properties {
		if chunkKey(p.chunk) == chunk {
			return nil, errors.Errorf("Property %q uses chunk %q of %q", def.Name, chunk, p.name)
		}
	}

	schema, err := NewSchema(def.Fields)
	if err != nil {
		return nil, errors.Wrapf(err, "Property %q", def.Name)
	}
	inheritor, err := s.inherit.CreateInheritor(def.Name, def.Inherit)
	if err != nil {
		return nil, errors.Wrapf(err, "Property %q", def.Name)
	}

	p := newProperty(def, schema, inheritor)
	p.RegisterListener(s.listeners.Broadcast, 0)
	s.properties[def.Name] = p
	return p, nil
}

func chunkKey(name string) string {
	if len(name) > darkdb.MAX_CHUNK_NAME {
		return name[:darkdb.MAX_CHUNK_NAME]
	}
	return name
}

func (s *Service) GetProperty(name string) (*Property, error) {
	p, ok := s.properties[name]
	if !ok {
		return nil, errors.Errorf("Property %q not found", name)
	}
	return p, nil
}

// Properties returns properties ordered by name
func (s *Service) Properties() []*Property {
	result := make([]*Property, 0, len(s.properties))
	for _, p := range s.properties {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

func (s *Service) Has(obj object.ID, name string) bool {
	p, ok := s.properties[name]
	return ok && p.Has(obj)
}

func (s *Service) Owns(obj object.ID, name string) bool {
	p, ok := s.properties[name]
	return ok && p.Owns(obj)
}

// OnDatabaseChange is the property database listener
// (database.PriorityProperty)
func (s *Service) OnDatabaseChange(msg *database.ChangeMsg) error {
	mask := object.MaskFromDatabase(msg.Mask, msg.DBTarget)

	for _, p := range s.Properties() {
		var err error
		switch msg.Change {
		case database.Dropping:
			err = s.clear(p, mask)
		case database.Loading:
			if mask != 0 {
				err = p.Load(msg.DB, mask)
			}
		case database.Saving:
			err = p.Save(msg.Target, mask)
		}
		if err != nil {
			return errors.Wrapf(err, "Property %s", p.name)
		}
	}
	return nil
}

func (s *Service) clear(p *Property, mask object.Mask) error {
	if mask == object.MaskAll {
		return p.Clear()
	}
	for _, obj := range p.Objects() {
		if mask.Includes(obj) {
			if err := p.Unset(obj); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) OnObjectMsg(msg object.Msg) error {
	for _, p := range s.Properties() {
		var err error
		switch msg.Type {
		case object.Destroyed:
			err = p.ObjectDestroyed(msg.ID)
		case object.SystemCleared:
			err = p.Clear()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

package inherit

import (
	"log"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/broadcast"
	"github.com/mogaika/dark_db_browser/link"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/value"
)

const (
	// MetaProp links go from the inheriting object to its archetype or
	// metaproperty
	MetaPropRelationName = "MetaProp"

	ArchetypePriority    = 0
	MetaPropPriorityBase = 1024
	MetaPropPriorityStep = 8
)

var ErrNoRelation = errors.New("MetaProp relation is not available")

type Change int

const (
	Added Change = iota
	Removed
	Changed
	ClearedAll
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return "cleared"
}

// ChangeMsg describes an edge change in inheritance direction: DstID
// inherits from SrcID. ClearedAll carries no ids.
type ChangeMsg struct {
	Change   Change
	SrcID    object.ID
	DstID    object.ID
	Priority uint32
}

type RelationSource interface {
	GetRelation(name string) (*link.Relation, error)
}

// Service turns MetaProp link events into inheritance edges and keeps the
// inheritors it created up to date
type Service struct {
	index      *Index
	relation   *link.Relation
	listenerID broadcast.ListenerID

	inheritors []*Inheritor
	listeners  broadcast.Source[ChangeMsg]
}

func NewService() *Service {
	return &Service{index: NewIndex()}
}

// Init subscribes to the MetaProp relation
func (s *Service) Init(links RelationSource) error {
	if links == nil {
		return ErrNoRelation
	}
	rel, err := links.GetRelation(MetaPropRelationName)
	if err != nil || rel == nil {
		return errors.Wrapf(ErrNoRelation, "Relation %q: %v", MetaPropRelationName, err)
	}
	if s.relation != nil {
		s.relation.UnregisterListener(s.listenerID)
	}
	s.relation = rel
	s.listenerID = rel.RegisterListener(s.OnMetaPropMsg, 0)
	return nil
}

func (s *Service) RegisterListener(l broadcast.Listener[ChangeMsg], priority int) broadcast.ListenerID {
	return s.listeners.Register(l, priority)
}

func (s *Service) UnregisterListener(id broadcast.ListenerID) bool {
	return s.listeners.Unregister(id)
}

func (s *Service) Index() *Index { return s.index }

func (s *Service) Inheritors() []*Inheritor {
	return append([]*Inheritor(nil), s.inheritors...)
}

// CreateInheritor makes an inheritor of the named policy that follows
// every edge change of this service
func (s *Service) CreateInheritor(name, policy string) (*Inheritor, error) {
	p, err := ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	in := NewInheritor(name, p, s.index)
	s.inheritors = append(s.inheritors, in)
	in.edgeListener = s.listeners.Register(func(msg ChangeMsg) error {
		if msg.Change == ClearedAll {
			in.Clear()
			return nil
		}
		return in.Refresh(msg.DstID)
	}, 0)
	return in, nil
}

// DestroyInheritor stops in from following edge changes
func (s *Service) DestroyInheritor(in *Inheritor) bool {
	for i, other := range s.inheritors {
		if other == in {
			s.inheritors = append(s.inheritors[:i], s.inheritors[i+1:]...)
			return s.listeners.Unregister(in.edgeListener)
		}
	}
	return false
}

func (s *Service) linkPriority(id link.LinkID) (uint32, error) {
	v, err := s.relation.GetLinkField(id, "priority")
	if err != nil {
		return 0, errors.Wrapf(err, "Cannot read priority of %v", id)
	}
	return v.UInt()
}

// A MetaProp link goes from the inheriting object to where it inherits
// from, inheritance edges point the other way.
func inheritanceSourceOf(l link.Link) object.ID { return l.Dst }
func inheritanceTargetOf(l link.Link) object.ID { return l.Src }

func (s *Service) OnMetaPropMsg(msg link.ChangeMsg) error {
	src, dst := inheritanceSourceOf(msg.Link), inheritanceTargetOf(msg.Link)

	switch msg.Change {
	case link.RelationCleared:
		return s.Clear()
	case link.Added:
		prio, err := s.linkPriority(msg.LinkID)
		if err != nil {
			return err
		}
		if err := s.index.Add(src, dst, prio); err != nil {
			return err
		}
		return s.listeners.Broadcast(ChangeMsg{Change: Added, SrcID: src, DstID: dst, Priority: prio})
	case link.Changed:
		prio, err := s.linkPriority(msg.LinkID)
		if err != nil {
			return err
		}
		if err := s.index.Change(src, dst, prio); err != nil {
			return err
		}
		return s.listeners.Broadcast(ChangeMsg{Change: Changed, SrcID: src, DstID: dst, Priority: prio})
	case link.Removed:
		il, ok := s.index.Get(src, dst)
		if !ok {
			return errors.Wrapf(ErrInvariant, "Removed MetaProp link %v (%d -> %d) has no inheritance edge", msg.LinkID, src, dst)
		}
		if err := s.index.Remove(src, dst); err != nil {
			return err
		}
		return s.listeners.Broadcast(ChangeMsg{Change: Removed, SrcID: src, DstID: dst, Priority: il.Priority})
	}
	return nil
}

func (s *Service) Clear() error {
	s.index.Clear()
	return s.listeners.Broadcast(ChangeMsg{Change: ClearedAll})
}

func (s *Service) GetSources(obj object.ID) []InheritLink { return s.index.Sources(obj) }
func (s *Service) GetTargets(obj object.ID) []InheritLink { return s.index.Targets(obj) }

// InheritsFrom checks for a direct edge src -> obj
func (s *Service) InheritsFrom(obj, src object.ID) bool {
	_, ok := s.index.Get(src, obj)
	return ok
}

// GetArchetype returns the source of the priority 0 edge or None
func (s *Service) GetArchetype(obj object.ID) object.ID {
	for _, il := range s.index.Sources(obj) {
		if il.Priority == ArchetypePriority {
			return il.Src
		}
	}
	return object.None
}

func (s *Service) createLink(obj, src object.ID, priority uint32) error {
	if s.relation == nil {
		return ErrNoRelation
	}
	_, err := s.relation.Create(obj, src, map[string]value.Value{"priority": value.NewUInt(priority)})
	return err
}

func (s *Service) SetArchetype(obj, archetype object.ID) error {
	if current := s.GetArchetype(obj); current != object.None {
		return errors.Errorf("%v already has archetype %v", obj, current)
	}
	return s.createLink(obj, archetype, ArchetypePriority)
}

// AddMetaProperty links mp above every metaproperty obj already has
func (s *Service) AddMetaProperty(obj, mp object.ID) error {
	if s.InheritsFrom(obj, mp) {
		return nil
	}

	prio := uint32(MetaPropPriorityBase)
	for _, il := range s.index.Sources(obj) {
		if next := il.Priority + MetaPropPriorityStep; il.Priority >= MetaPropPriorityBase && next > prio {
			prio = next
		}
	}
	return s.createLink(obj, mp, prio)
}

func (s *Service) RemoveMetaProperty(obj, mp object.ID) error {
	if s.GetArchetype(obj) == mp {
		log.Printf("[inherit] Not removing %v from %v, it is the archetype", mp, obj)
		return nil
	}
	if !s.InheritsFrom(obj, mp) {
		return nil
	}
	if s.relation == nil {
		return ErrNoRelation
	}
	l, err := s.relation.GetOneLink(obj, mp)
	if err != nil {
		return err
	}
	return s.relation.Remove(l.ID)
}

func (s *Service) HasMetaProperty(obj, mp object.ID) bool {
	if s.GetArchetype(obj) == mp {
		return false
	}
	return s.InheritsFrom(obj, mp)
}

package engine

import (
	"log"

	"github.com/pkg/errors"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/database"
	"github.com/mogaika/dark_db_browser/inherit"
	"github.com/mogaika/dark_db_browser/link"
	"github.com/mogaika/dark_db_browser/object"
	"github.com/mogaika/dark_db_browser/property"
	"github.com/mogaika/dark_db_browser/status"
	"github.com/mogaika/dark_db_browser/vfs"
)

// listener priorities of the object system broadcasts, data owners
// forget the object before the links pointing at it
const (
	objectPriorityProperty = 10
	objectPriorityLink     = 20
)

// Engine owns one instance of every service and the wiring between them
type Engine struct {
	Config     *config.Config
	Locator    *vfs.Locator
	Database   *database.Service
	Objects    *object.Service
	Links      *link.Service
	MetaProp   *link.Relation
	Inherit    *inherit.Service
	Properties *property.Service
}

func New(cfg *config.Config) (*Engine, error) {
	return NewWithLocator(cfg, vfs.NewLocatorFromPaths(cfg.ResourcePaths))
}

func NewWithLocator(cfg *config.Config, locator *vfs.Locator) (*Engine, error) {
	policy, err := database.ParseLoadPolicy(cfg.LoadPolicy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Config:   cfg,
		Locator:  locator,
		Database: database.NewService(locator, policy),
		Links:    link.NewService(),
		Inherit:  inherit.NewService(),
	}

	if e.MetaProp, err = e.Links.CreateRelation(inherit.MetaPropRelationName, link.NewUIntStorage(), true); err != nil {
		return nil, err
	}
	if err := e.Inherit.Init(e.Links); err != nil {
		return nil, err
	}

	e.Objects = object.NewService(e.Inherit)
	e.Properties = property.NewService(e.Inherit)
	for _, def := range cfg.Properties {
		if _, err := e.Properties.CreateProperty(def); err != nil {
			return nil, errors.Wrapf(err, "Cannot create property from config")
		}
	}

	e.Database.RegisterListener(e.Objects.OnDatabaseChange, database.PriorityObject)
	e.Database.RegisterListener(e.Properties.OnDatabaseChange, database.PriorityProperty)
	e.Database.RegisterListener(e.Links.OnDatabaseChange, database.PriorityLink)

	e.Objects.RegisterListener(e.Properties.OnObjectMsg, objectPriorityProperty)
	e.Objects.RegisterListener(e.Links.OnObjectMsg, objectPriorityLink)

	e.Database.SetProgressListener(func(p database.Progress) {
		status.Progress(p.Completed, "Database step %d/%d", p.CurrentCoarse, p.TotalCoarse)
	})

	log.Printf("[engine] Ready: %d properties, %d relations, resources in %v",
		len(e.Properties.Properties()), len(e.Links.Relations()), cfg.ResourcePaths)
	return e, nil
}

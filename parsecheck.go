package main

import (
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mogaika/dark_db_browser/engine"
	"github.com/mogaika/dark_db_browser/utils"
)

var checkedExtensions = map[string]bool{".gam": true, ".mis": true, ".sav": true}

// parseCheck loads every database in the resource paths and reports the
// ones failing, returns the failure count
func parseCheck(e *engine.Engine) int {
	files := e.Locator.List()
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	failed := 0
	for _, name := range files {
		if !checkedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		var err error
		if strings.EqualFold(filepath.Ext(name), ".gam") {
			err = e.Database.LoadGameSys(name)
		} else {
			err = e.Database.Load(name)
		}
		if err != nil {
			failed++
			log.Printf("[check] %s: %v", name, err)
			utils.LogDump("[check] progress at failure", e.Database.Progress())
			continue
		}
		log.Printf("[check] %s: ok, %d objects, chain %v", name, len(e.Objects.Objects()), e.Database.Chain())
	}
	if err := e.Database.Unload(); err != nil {
		log.Printf("[check] unload: %v", err)
		failed++
	}
	return failed
}

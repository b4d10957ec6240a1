package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/engine"
	"github.com/mogaika/dark_db_browser/object"
)

func objectTitle(e *engine.Engine, id object.ID) string {
	if name := e.Name(id); name != "" {
		return fmt.Sprintf("%s (%d)", name, id)
	}
	return fmt.Sprint(int32(id))
}

// Document prints every archetype of the loaded gamesys as a tree of
// archetype parents, with metaproperties and the properties it sets
func Document(e *engine.Engine, out io.Writer) error {
	children := make(map[object.ID][]object.ID)
	var roots []object.ID
	for _, id := range e.Objects.Objects() {
		if !id.IsArchetype() {
			continue
		}
		if parent := e.Inherit.GetArchetype(id); parent != object.None {
			children[parent] = append(children[parent], id)
		} else {
			roots = append(roots, id)
		}
	}

	var walk func(id object.ID, depth int) error
	walk = func(id object.ID, depth int) error {
		info, err := e.Describe(id)
		if err != nil {
			return err
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(out, "%s%s\n", indent, objectTitle(e, id))
		for _, mp := range info.MetaProps {
			fmt.Fprintf(out, "%s  + %s\n", indent, objectTitle(e, mp))
		}
		for _, p := range info.Properties {
			if !p.Owned {
				continue
			}
			names := make([]string, 0, len(p.Fields))
			for name := range p.Fields {
				names = append(names, name)
			}
			sort.Strings(names)
			fields := make([]string, len(names))
			for i, name := range names {
				if name == "" {
					fields[i] = p.Fields[name].String()
				} else {
					fields[i] = name + "=" + p.Fields[name].String()
				}
			}
			fmt.Fprintf(out, "%s  %s: %s\n", indent, p.Name, strings.Join(fields, " "))
		}
		for _, child := range children[id] {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	// roots come from Objects() in ascending order, ids closest to zero last
	for i := len(roots) - 1; i >= 0; i-- {
		if err := walk(roots[i], 0); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var configPath, gamesys string
	flag.StringVar(&configPath, "config", "dark_db_browser.yaml", "Path to config with property schema")
	flag.StringVar(&gamesys, "gam", "", "Gamesys file name, searched in resource paths")
	flag.Parse()

	if gamesys == "" {
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	e, err := engine.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := e.Database.LoadGameSys(gamesys); err != nil {
		log.Fatal(err)
	}
	if err := Document(e, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"flag"
	"log"
	"strings"

	"github.com/mogaika/dark_db_browser/config"
	"github.com/mogaika/dark_db_browser/engine"
	"github.com/mogaika/dark_db_browser/web"
)

func main() {
	var addr, configPath, paths, load, gamesys, policy string
	var check bool
	flag.StringVar(&configPath, "config", "dark_db_browser.yaml", "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server, overrides config listen")
	flag.StringVar(&paths, "dir", "", "Comma separated directories with database files, overrides config resource_paths")
	flag.StringVar(&policy, "policy", "", "Load policy: failfast or besteffort")
	flag.StringVar(&load, "load", "", "Mission or savegame to load on start")
	flag.StringVar(&gamesys, "gam", "", "Gamesys to load on start when -load is not set")
	flag.BoolVar(&check, "check", false, "Load every database in resource paths, report failures and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if addr != "" {
		cfg.Listen = addr
	}
	if paths != "" {
		cfg.ResourcePaths = strings.Split(paths, ",")
	}
	if policy != "" {
		cfg.LoadPolicy = policy
	}

	e, err := engine.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if check {
		if failed := parseCheck(e); failed != 0 {
			log.Fatalf("[check] %d databases failed", failed)
		}
		return
	}

	if load != "" {
		if err := e.Database.Load(load); err != nil {
			log.Printf("[main] Failed to load %q: %v", load, err)
		}
	} else if gamesys != "" {
		if err := e.Database.LoadGameSys(gamesys); err != nil {
			log.Printf("[main] Failed to load %q: %v", gamesys, err)
		}
	}

	if err := web.StartServer(cfg.Listen, e, cfg.WebPath); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mogaika/dark_db_browser/darkdb"
	"github.com/mogaika/dark_db_browser/vfs"
)

const MetaFileName = "_db_meta_.txt"

var motd = `#
# <=======> Dark database meta file <=======>
#
# Versions in hex
# Lines format:
# name | version major | version minor | saved_filename
#
# Chunks are packed back in any order, the inventory is sorted by name.
# Remove a line to drop the chunk.
`

func UnpackDatabase(fg *darkdb.FileGroup, outDir string) {
	if err := os.MkdirAll(outDir, 0776); err != nil {
		panic(err)
	}
	meta, err := os.Create(filepath.Join(outDir, MetaFileName))
	if err != nil {
		panic(err)
	}
	defer meta.Close()

	fmt.Fprint(meta, motd)

	for id, name := range fg.List() {
		h, err := fg.Header(name)
		if err != nil {
			panic(err)
		}
		r, err := fg.GetFile(name)
		if err != nil {
			panic(err)
		}

		savedFileName := fmt.Sprintf("%.3d_%s.bin", id, name)
		log.Printf("%-12s %d.%d %8d bytes -> %s", name, h.VersionMajor, h.VersionMinor, r.Size(), savedFileName)

		of, err := os.Create(filepath.Join(outDir, savedFileName))
		if err != nil {
			panic(err)
		}
		if _, err := io.Copy(of, r); err != nil {
			panic(err)
		}
		of.Close()

		fmt.Fprintf(meta, "%-12s | %-4x | %-4x | %s\n", name, h.VersionMajor, h.VersionMinor, savedFileName)
	}
}

func main() {
	var inDB, dirs, outDir string
	flag.StringVar(&inDB, "db", "", "Database file name (.gam, .mis, .sav) to unpack")
	flag.StringVar(&dirs, "dir", ".", "Comma separated directories searched for the database, case is ignored")
	flag.StringVar(&outDir, "out", "db_content", "Path where to unpack chunks")
	flag.Parse()

	locator := vfs.NewLocatorFromPaths(strings.Split(dirs, ","))
	r, closer, err := locator.Open(inDB)
	if err != nil {
		panic(err)
	}
	defer closer.Close()

	fg, err := darkdb.Open(inDB, r, r.Size())
	if err != nil {
		panic(err)
	}

	UnpackDatabase(fg, outDir)
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mogaika/dark_db_browser/darkdb"
)

func CopyFileToStream(f io.Writer, fileName string) int64 {
	src, err := os.Open(fileName)
	if err != nil {
		panic(err)
	}
	defer src.Close()

	written, err := io.Copy(f, src)
	if err != nil {
		panic(err)
	}
	return written
}

// MakeDatabase builds a database from a meta file written by dbunpack
func MakeDatabase(name, metaDir string, inMeta *bufio.Reader) *darkdb.FileGroup {
	fg := darkdb.New(name)
	for {
		s, err := inMeta.ReadString('\n')
		if err != nil && err != io.EOF {
			panic(err)
		}
		line := strings.Trim(strings.Split(s, "#")[0], " \t\r\n")
		if line != "" {
			params := strings.Split(line, "|")
			if len(params) != 4 {
				panic(fmt.Sprintf("Invalid meta line %q", s))
			}
			var major, minor uint32
			chunk := strings.Trim(params[0], " \t")
			fmt.Sscanf(params[1], "%x", &major)
			fmt.Sscanf(params[2], "%x", &minor)
			fileName := strings.Trim(params[3], " \t")

			w, err := fg.CreateFile(chunk, major, minor)
			if err != nil {
				panic(err)
			}
			size := CopyFileToStream(w, filepath.Join(metaDir, fileName))
			log.Printf("%-12s %d.%d %8d bytes <- %s", chunk, major, minor, size, fileName)
		}
		if err == io.EOF {
			break
		}
	}
	return fg
}

func main() {
	var inDir, outDB string
	flag.StringVar(&inDir, "in", "db_content", "Directory with _db_meta_.txt and chunk files")
	flag.StringVar(&outDB, "db", "", "Path of the database file to create")
	flag.Parse()

	meta, err := os.Open(filepath.Join(inDir, "_db_meta_.txt"))
	if err != nil {
		panic(err)
	}
	defer meta.Close()

	fg := MakeDatabase(filepath.Base(outDB), inDir, bufio.NewReader(meta))

	out, err := os.Create(outDB)
	if err != nil {
		panic(err)
	}
	defer out.Close()

	if _, err := fg.WriteTo(out); err != nil {
		panic(err)
	}
}

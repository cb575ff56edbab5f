package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mickamy/ormcoll/internal/gen"
)

var version = "dev"

func main() {
	source := flag.String("source", "", "Go file to read structs from (default $GOFILE)")
	destination := flag.String("destination", "", "output file (default <source>_coll_gen.go next to the source)")
	types := flag.String("type", "", "comma-separated struct names to render (default all with a primary key)")
	destPkg := flag.String("package", "", "output package name (default the source package)")
	sourceImport := flag.String("import", "", "import path of the source package (required with -package)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ormcoll", version)
		return
	}

	if *source == "" {
		*source = os.Getenv("GOFILE")
	}
	if *source == "" {
		log.Fatal("-source is required when GOFILE is not set (run via go:generate)")
	}

	infos, err := gen.Parse(*source)
	if err != nil {
		log.Fatalf("parse: %v", err)
	}

	infos, err = selectTypes(infos, *types)
	if err != nil {
		log.Fatal(err)
	}

	src, err := gen.RenderFile(infos, gen.RenderOption{
		DestPkg:      *destPkg,
		SourceImport: *sourceImport,
	})
	if err != nil {
		log.Fatalf("render: %v", err)
	}

	outPath := *destination
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(*source), ".go")
		outPath = filepath.Join(filepath.Dir(*source), base+"_coll_gen.go")
	}

	if err := os.WriteFile(outPath, src, 0o644); err != nil { //nolint:gosec // generated code should be world-readable
		log.Fatalf("write %s: %v", outPath, err)
	}

	fmt.Printf("ormcoll: wrote %s\n", outPath)
}

// selectTypes keeps the named structs, or every struct with a primary key
// when names is empty.
func selectTypes(infos []*gen.StructInfo, names string) ([]*gen.StructInfo, error) {
	if names == "" {
		var out []*gen.StructInfo
		for _, info := range infos {
			if _, err := info.PrimaryKeyField(); err == nil {
				out = append(out, info)
			}
		}
		return out, nil
	}

	byName := make(map[string]*gen.StructInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	var out []*gen.StructInfo
	for _, name := range strings.Split(names, ",") {
		info, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("type %s not found", name)
		}
		out = append(out, info)
	}
	return out, nil
}

package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "instrumentor")

func main() {
	var (
		file       = flag.String("file", "", "Go file to instrument")
		dir        = flag.String("dir", "", "Instrument every non-test Go file in this directory")
		importPath = flag.String("pkg", "alma.local/greybox/coverage", "Import path of the coverage hooks")
		base       = flag.Int("base", 0, "First site index")
		meta       = flag.String("meta", "coverage.json", "Where to write site metadata")
	)
	flag.Parse()

	var paths []string
	switch {
	case *dir != "":
		matches, err := filepath.Glob(filepath.Join(*dir, "*.go"))
		if err != nil {
			log.WithError(err).Fatal("Listing directory")
		}
		for _, m := range matches {
			if !strings.HasSuffix(m, "_test.go") {
				paths = append(paths, m)
			}
		}
		sort.Strings(paths)
	case *file != "":
		paths = []string{*file}
	default:
		log.Fatal("One of -file or -dir is required")
	}

	in := newInstrumenter(*importPath, *base)
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			log.WithError(err).Fatal("Reading source")
		}
		out, err := in.file(p, src)
		if err != nil {
			log.WithError(err).WithField("file", p).Fatal("Instrumenting")
		}
		if err := os.WriteFile(p, out, 0o644); err != nil {
			log.WithError(err).Fatal("Writing source")
		}
		log.WithField("file", p).Info("Instrumented")
	}

	md := in.metadata()
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		log.WithError(err).Fatal("Encoding metadata")
	}
	if err := os.WriteFile(*meta, data, 0o644); err != nil {
		log.WithError(err).Fatal("Writing metadata")
	}
	log.WithFields(logrus.Fields{"sites": len(md.Sites), "mapSize": md.MapSize}).Info("Instrumentation complete")
}

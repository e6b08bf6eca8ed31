package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "veinmine.ai/internal/persistence/log"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		runsDir = flag.String("runs", "", "journal dir containing runs-*.jsonl.zst (default: <data>/runs)")
		runID   = flag.String("run", "", "only summarize this run id")
	)
	flag.Parse()

	dir := *runsDir
	if dir == "" {
		dir = filepath.Join(*dataDir, "runs")
	}
	files, err := persistlog.ListFiles(dir, "runs")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files in", dir)
		os.Exit(2)
	}

	r := newReplay(*runID)
	for _, path := range files {
		if err := persistlog.ReadFile(path, r.apply); err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
	}
	r.print(os.Stdout)
	if *runID != "" && len(r.order) == 0 {
		fmt.Fprintln(os.Stderr, "run not found:", *runID)
		os.Exit(1)
	}
}

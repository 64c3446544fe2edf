package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"satchel/internal/config"
	"satchel/internal/docstore"
	boltkv "satchel/internal/kv/bolt"
	"satchel/internal/logging"
	"satchel/internal/notify"
)

const usage = `usage: satchel [flags] <command> [args]

commands:
  demo            run a scripted add/update/delete sequence with a live subscriber
  dump <type>     write a JSON dump of a table and print its path
  flush           clear all tables (normalized entries are kept)
  watch <key>     observe a settings key until interrupted
  set <key> <value>  set a settings key (value stored as a string)

flags:`

func main() {
	configPath := flag.String("config", "", "path to config file")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	cfg.Store.DataDir = config.ExpandHome(cfg.Store.DataDir)
	if err := os.MkdirAll(cfg.Store.DataDir, 0700); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	if cfg.Store.DumpDir == "" {
		cfg.Store.DumpDir = filepath.Join(cfg.Store.DataDir, "dumps")
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "watch", "set":
		if err := runPrefsCommand(cfg, args); err != nil {
			log.Fatalf("%s: %v", args[0], err)
		}
		return
	}

	backend, err := boltkv.Open(filepath.Join(cfg.Store.DataDir, "data.db"))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer backend.Close()

	store := docstore.New(backend, notify.NewBus(), docstore.Options{
		Namespace:           cfg.Store.Namespace,
		NormalizedNamespace: cfg.Store.NormalizedNamespace,
		DumpDir:             cfg.Store.DumpDir,
	})

	if err := runStoreCommand(store, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

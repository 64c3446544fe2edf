package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"satchel/internal/config"
	"satchel/internal/docstore"
	"satchel/internal/notify"
	"satchel/internal/prefs"
)

// Item is the record type used by the demo commands.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (i Item) RecordID() string { return i.ID }

var itemType = docstore.NewType[Item]("Item")

func runStoreCommand(store *docstore.Store, args []string) error {
	switch args[0] {
	case "demo":
		return runDemo(store)
	case "dump":
		if len(args) != 2 {
			return fmt.Errorf("usage: satchel dump <type>")
		}
		if args[1] != itemType.Name {
			return fmt.Errorf("unknown type %q (demo binary only knows %q)", args[1], itemType.Name)
		}
		path, err := docstore.Dump(store, itemType)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "flush":
		return store.Flush()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// runDemo exercises the store end to end: a subscriber registered up front
// prints every notification produced by a scripted mutation sequence.
func runDemo(store *docstore.Store) error {
	// Start from empty tables so reruns produce the same sequence.
	if err := store.Flush(); err != nil {
		return err
	}

	sub := docstore.Subscribe(store, itemType)
	defer sub.Cancel()

	steps := []func() error{
		func() error { return docstore.Add(store, itemType, Item{ID: "1", Title: "item1"}) },
		func() error { return docstore.Add(store, itemType, Item{ID: "2", Title: "item2"}) },
		func() error { return docstore.Add(store, itemType, Item{ID: "2", Title: "item2_updated"}) },
		func() error { return docstore.Add(store, itemType, Item{ID: "1", Title: "item1_updated"}) },
		func() error { return docstore.Delete(store, itemType, Item{ID: "1"}) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	// Every step produces exactly one notification for this type.
	for range steps {
		n := <-sub.C()
		switch n.Kind {
		case notify.KindAdd:
			fmt.Printf("add    %s %q\n", n.ID, n.New.Title)
		case notify.KindUpdate:
			fmt.Printf("update %s %q -> %q\n", n.ID, n.Old.Title, n.New.Title)
		case notify.KindDelete:
			fmt.Printf("delete %s\n", n.ID)
		}
	}

	items, err := docstore.GetAll(store, itemType)
	if err != nil {
		return err
	}
	fmt.Printf("final state: %d item(s)\n", len(items))
	for _, it := range items {
		fmt.Printf("  %s %q\n", it.ID, it.Title)
	}
	return nil
}

func runPrefsCommand(cfg *config.Config, args []string) error {
	settings, err := prefs.Open(filepath.Join(cfg.Store.DataDir, "settings.json"))
	if err != nil {
		return err
	}
	defer settings.Close()

	switch args[0] {
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: satchel set <key> <value>")
		}
		return settings.Set(args[1], args[2])
	case "watch":
		if len(args) != 2 {
			return fmt.Errorf("usage: satchel watch <key>")
		}
		return runWatch(settings, args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runWatch(settings *prefs.Store, key string) error {
	w := settings.Observe(key)
	defer w.Cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	fmt.Printf("watching %q (ctrl-c to stop)\n", key)

	for {
		select {
		case c := <-w.C():
			fmt.Printf("%s: %s -> %s\n", c.Key, orAbsent(c.Old), orAbsent(c.New))
		case <-sig:
			return nil
		}
	}
}

func orAbsent(raw []byte) string {
	if raw == nil {
		return "(absent)"
	}
	return string(raw)
}

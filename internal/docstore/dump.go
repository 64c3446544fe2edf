package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Dump writes a pretty-printed JSON snapshot of the table for typ to a file
// under the store's dump directory and logs a one-line summary. It is a
// diagnostic aid only: neither the file format nor its location is part of
// the store's contract. Returns the path of the written file.
func Dump[T Record](s *Store, typ Type[T]) (string, error) {
	tbl, err := s.loadTable(typ.Name)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(tbl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding dump for %s: %w", typ.Name, err)
	}

	dir := s.dumpDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}
	path := filepath.Join(dir, typ.Name+".json")
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return "", fmt.Errorf("writing dump: %w", err)
	}

	logger.Info("dumped table", "type", typ.Name, "entries", len(tbl), "path", path)
	logger.Debug("table contents", "type", typ.Name, "json", string(raw))
	return path, nil
}

package prune

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

// scanDir maps model definition files under dir to registry names:
// the path relative to dir with the extension stripped and path
// separators replaced by dots, so audit/logs.sql becomes audit.logs.
// A missing directory yields no names.
func scanDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(rel, filepath.Ext(rel))
		names = append(names, strings.ReplaceAll(name, string(filepath.Separator), "."))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return names, nil
}

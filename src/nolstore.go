package dfs

// The NOL survives a restart in a small YAML file.  Entries keep their
// absolute start time so the remaining period is right after loading.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type nolFile struct {
	Channels []NOLEntry `yaml:"channels"`
}

// SaveNOL writes entries to fname, replacing it atomically.
func SaveNOL(fname string, entries []NOLEntry) error {
	var data, marshalErr = yaml.Marshal(nolFile{Channels: entries})
	if marshalErr != nil {
		return fmt.Errorf("encoding NOL: %w", marshalErr)
	}

	var tmp, tmpErr = os.CreateTemp(filepath.Dir(fname), filepath.Base(fname)+".*")
	if tmpErr != nil {
		return fmt.Errorf("saving NOL: %w", tmpErr)
	}

	var _, writeErr = tmp.Write(data)
	var closeErr = tmp.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmp.Name()) //nolint:gosec
		return fmt.Errorf("saving NOL: %w", err)
	}

	if err := os.Rename(tmp.Name(), fname); err != nil {
		os.Remove(tmp.Name()) //nolint:gosec
		return fmt.Errorf("saving NOL: %w", err)
	}

	return nil
}

// LoadNOL reads entries saved by SaveNOL.  A missing file is an empty NOL.
func LoadNOL(fname string) ([]NOLEntry, error) {
	var data, readErr = os.ReadFile(fname)
	if errors.Is(readErr, os.ErrNotExist) {
		return nil, nil
	}
	if readErr != nil {
		return nil, fmt.Errorf("loading NOL: %w", readErr)
	}

	var f nolFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("loading NOL %s: %w", fname, err)
	}

	return f.Channels, nil
}

package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML shape of a catalog seed file:
//
//	entries:
//	  - id: "196000001"
//	    canonical_name: "타이레놀정500밀리그램"
//	    manufacturer: "한국존슨앤드존슨판매"
type SeedFile struct {
	Entries []SeedEntry `yaml:"entries"`
}

// SeedEntry is one catalog entry in a seed file.
type SeedEntry struct {
	ID            string `yaml:"id"`
	CanonicalName string `yaml:"canonical_name"`
	Manufacturer  string `yaml:"manufacturer"`
}

// LoadSeed reads and parses a catalog seed file.
func LoadSeed(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog seed: %w", err)
	}

	entries := make([]Entry, 0, len(f.Entries))
	for i, se := range f.Entries {
		if se.ID == "" || se.CanonicalName == "" {
			return nil, fmt.Errorf("catalog seed entry %d: id and canonical_name are required", i)
		}
		entries = append(entries, Entry{
			ID:            se.ID,
			CanonicalName: se.CanonicalName,
			Manufacturer:  se.Manufacturer,
		})
	}
	return entries, nil
}

// Seed upserts all entries from a seed file into the store. Re-running with
// the same file is idempotent.
func (s *Store) Seed(ctx context.Context, path string) (int, error) {
	entries, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := s.Upsert(ctx, e); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

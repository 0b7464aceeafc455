package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
)

// LoadBuiltinCatalogue loads the builtin recommended-app catalogue from a YAML file.
func LoadBuiltinCatalogue(path string) (*recommend.BuiltinCatalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read builtin catalogue: %w", err)
	}
	return ParseBuiltinCatalogue(data)
}

// ParseBuiltinCatalogue parses and validates catalogue YAML. Entries are
// sorted by position within each language.
func ParseBuiltinCatalogue(data []byte) (*recommend.BuiltinCatalogue, error) {
	var cat recommend.BuiltinCatalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse builtin catalogue: %w", err)
	}

	for lang, apps := range cat.Languages {
		seen := make(map[string]bool, len(apps))
		for _, a := range apps {
			if a.AppID == "" {
				return nil, fmt.Errorf("language %s: app_id is required", lang)
			}
			if seen[a.AppID] {
				return nil, fmt.Errorf("language %s: duplicate app_id %s", lang, a.AppID)
			}
			seen[a.AppID] = true
		}
		sort.SliceStable(apps, func(i, j int) bool { return apps[i].Position < apps[j].Position })
	}
	if cat.Languages == nil {
		cat.Languages = map[string][]recommend.Detail{}
	}
	return &cat, nil
}

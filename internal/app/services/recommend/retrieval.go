package recommend

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/storage"
)

// Retrieval supplies catalogue and detail views of recommended apps.
type Retrieval interface {
	Catalogue(ctx context.Context, language string) (recommend.Catalogue, error)
	// Detail returns storage.ErrNotFound when appID is unknown.
	Detail(ctx context.Context, appID, language string) (recommend.Detail, error)
}

// DBRetrieval reads listed, public apps from storage.
type DBRetrieval struct {
	store storage.RecommendedAppStore
}

// NewDBRetrieval builds a storage-backed retrieval.
func NewDBRetrieval(store storage.RecommendedAppStore) *DBRetrieval {
	return &DBRetrieval{store: store}
}

func (r *DBRetrieval) Catalogue(ctx context.Context, language string) (recommend.Catalogue, error) {
	listings, err := r.store.ListCatalogue(ctx, language)
	if err != nil {
		return recommend.Catalogue{}, fmt.Errorf("list catalogue: %w", err)
	}
	apps := make([]recommend.CatalogueApp, 0, len(listings))
	for _, l := range listings {
		apps = append(apps, catalogueApp(l))
	}
	return recommend.Catalogue{Apps: apps, Categories: categories(apps)}, nil
}

func (r *DBRetrieval) Detail(ctx context.Context, appID, _ string) (recommend.Detail, error) {
	listing, err := r.store.GetListing(ctx, appID)
	if err != nil {
		return recommend.Detail{}, err
	}
	entry := catalogueApp(listing)
	export, err := exportApp(entry)
	if err != nil {
		return recommend.Detail{}, err
	}
	return recommend.Detail{CatalogueApp: entry, Export: export}, nil
}

// BuiltinRetrieval serves the catalogue bundled with the deployment.
type BuiltinRetrieval struct {
	catalogue recommend.BuiltinCatalogue
}

// NewBuiltinRetrieval wraps a parsed catalogue. A nil catalogue is empty.
func NewBuiltinRetrieval(cat *recommend.BuiltinCatalogue) *BuiltinRetrieval {
	r := &BuiltinRetrieval{}
	if cat != nil {
		r.catalogue = *cat
	}
	return r
}

func (r *BuiltinRetrieval) Catalogue(_ context.Context, language string) (recommend.Catalogue, error) {
	entries := r.catalogue.Languages[language]
	apps := make([]recommend.CatalogueApp, 0, len(entries))
	for _, d := range entries {
		if d.IsListed {
			apps = append(apps, d.CatalogueApp)
		}
	}
	return recommend.Catalogue{Apps: apps, Categories: categories(apps)}, nil
}

// Detail prefers the requested language and then searches the others.
func (r *BuiltinRetrieval) Detail(_ context.Context, appID, language string) (recommend.Detail, error) {
	for _, d := range r.catalogue.Languages[language] {
		if d.AppID == appID {
			return d, nil
		}
	}
	langs := make([]string, 0, len(r.catalogue.Languages))
	for l := range r.catalogue.Languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		for _, d := range r.catalogue.Languages[l] {
			if d.AppID == appID {
				return d, nil
			}
		}
	}
	return recommend.Detail{}, storage.ErrNotFound
}

func catalogueApp(l recommend.Listing) recommend.CatalogueApp {
	return recommend.CatalogueApp{
		AppID:            l.App.ID,
		Name:             l.App.Name,
		Mode:             string(l.App.Mode),
		Icon:             l.App.Icon,
		IconType:         string(l.App.IconType),
		IconBackground:   l.App.IconBackground,
		Description:      l.Recommended.Description,
		Copyright:        l.Recommended.Copyright,
		PrivacyPolicy:    l.Recommended.PrivacyPolicy,
		CustomDisclaimer: l.Recommended.CustomDisclaimer,
		Category:         l.Recommended.Category,
		Position:         l.Recommended.Position,
		IsListed:         l.Recommended.IsListed,
	}
}

func categories(apps []recommend.CatalogueApp) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, a := range apps {
		if a.Category == "" || seen[a.Category] {
			continue
		}
		seen[a.Category] = true
		out = append(out, a.Category)
	}
	sort.Strings(out)
	return out
}

type exportDoc struct {
	Kind string      `yaml:"kind"`
	App  exportedApp `yaml:"app"`
}

type exportedApp struct {
	Name           string `yaml:"name"`
	Mode           string `yaml:"mode"`
	Icon           string `yaml:"icon"`
	IconBackground string `yaml:"icon_background"`
	Description    string `yaml:"description"`
}

// exportApp renders the importable YAML document for a listed app.
func exportApp(a recommend.CatalogueApp) (string, error) {
	out, err := yaml.Marshal(exportDoc{
		Kind: "app",
		App: exportedApp{
			Name:           a.Name,
			Mode:           a.Mode,
			Icon:           a.Icon,
			IconBackground: a.IconBackground,
			Description:    a.Description,
		},
	})
	if err != nil {
		return "", fmt.Errorf("export app %s: %w", a.AppID, err)
	}
	return string(out), nil
}

package recommend

import (
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
)

const (
	// DefaultCopyright is stamped on every published app.
	DefaultCopyright = "Takin.AI"
	// DefaultPrivacyPolicy is stamped on every published app.
	DefaultPrivacyPolicy = "https://Takin.ai"
	// DefaultCuratorEmail identifies apps curated by the platform team.
	DefaultCuratorEmail = "curator@takin.ai"

	// NameFilterMaxLen bounds the name substring filter.
	NameFilterMaxLen = 30
	MaxPerPage       = 100
	DefaultPerPage   = 20
	MaxPage          = 99999
)

// Mode selects which part of the marketplace a listing covers.
type Mode string

const (
	ModeRecommended Mode = "recommended"
	ModeCommunity   Mode = "community"
)

// ParseMode validates a mode string. Empty selects ModeRecommended.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "":
		return ModeRecommended, true
	case ModeRecommended, ModeCommunity:
		return Mode(s), true
	default:
		return "", false
	}
}

// RecommendedApp is the marketplace listing of an App.
type RecommendedApp struct {
	ID               string
	AppID            string
	Description      string
	Copyright        string
	PrivacyPolicy    string
	CustomDisclaimer string
	Category         string
	Position         int
	IsListed         bool
	Language         string
	InstallCount     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListFilter selects a page of listed, public recommended apps.
type ListFilter struct {
	Page         int
	PerPage      int
	Name         string
	Mode         Mode
	CuratorEmail string
}

// Normalize clamps paging, trims the name filter and defaults the mode.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	f.Name = TruncateName(f.Name)
	if f.Mode == "" {
		f.Mode = ModeRecommended
	}
	if f.CuratorEmail == "" {
		f.CuratorEmail = DefaultCuratorEmail
	}
	return f
}

// Offset is the number of rows preceding the page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// TruncateName cuts s to NameFilterMaxLen characters.
func TruncateName(s string) string {
	r := []rune(s)
	if len(r) > NameFilterMaxLen {
		return string(r[:NameFilterMaxLen])
	}
	return s
}

// Listing is a recommended app joined with its App and owner email as
// returned by storage.
type Listing struct {
	Recommended RecommendedApp
	App         app.App
	OwnerEmail  string
}

// Item is a Listing enriched with the owner's display name.
type Item struct {
	Listing
	Username string
}

// Page is one page of items.
type Page struct {
	Items   []Item
	Total   int
	Page    int
	PerPage int
	// NameStatus reports how the usernames were resolved.
	NameStatus string
}

// Pages is ceil(Total/PerPage).
func (p Page) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool {
	return p.Page < p.Pages()
}

// Catalogue is the explore landing view.
type Catalogue struct {
	Apps       []CatalogueApp
	Categories []string
}

// CatalogueApp is a catalogue entry. It is loaded from the builtin YAML file
// or built from the database.
type CatalogueApp struct {
	AppID            string `yaml:"app_id"`
	Name             string `yaml:"name"`
	Mode             string `yaml:"mode"`
	Icon             string `yaml:"icon"`
	IconType         string `yaml:"icon_type"`
	IconBackground   string `yaml:"icon_background"`
	Description      string `yaml:"description"`
	Copyright        string `yaml:"copyright"`
	PrivacyPolicy    string `yaml:"privacy_policy"`
	CustomDisclaimer string `yaml:"custom_disclaimer"`
	Category         string `yaml:"category"`
	Position         int    `yaml:"position"`
	IsListed         bool   `yaml:"is_listed"`
}

// Detail is the single-app view.
type Detail struct {
	CatalogueApp `yaml:",inline"`
	Export       string `yaml:"export_data"`
}

// BuiltinCatalogue maps language codes to their detailed entries.
type BuiltinCatalogue struct {
	Languages map[string][]Detail `yaml:"languages"`
}

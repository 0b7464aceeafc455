package httpapi

import (
	"net/url"
	"strings"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/app"
	"github.com/R3E-Network/marketplace_console/internal/app/domain/recommend"
	"github.com/R3E-Network/marketplace_console/internal/app/services/setup"
)

// appDTO is the embedded app of a listing item.
type appDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Username       string  `json:"username"`
	Mode           string  `json:"mode"`
	Icon           string  `json:"icon"`
	IconType       string  `json:"icon_type"`
	IconURL        *string `json:"icon_url"`
	IconBackground string  `json:"icon_background"`
}

// recommendedAppDTO is one entry of the explore listing.
type recommendedAppDTO struct {
	App              appDTO `json:"app"`
	AppID            string `json:"app_id"`
	Description      string `json:"description"`
	Copyright        string `json:"copyright"`
	PrivacyPolicy    string `json:"privacy_policy"`
	CustomDisclaimer string `json:"custom_disclaimer"`
	Category         string `json:"category"`
	Position         int    `json:"position"`
	IsListed         bool   `json:"is_listed"`
	CreatedAt        int64  `json:"created_at"`
}

// pageDTO is the listing envelope. The service's PerPage and HasNext are
// exposed as limit and has_more.
type pageDTO struct {
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Total   int                 `json:"total"`
	HasMore bool                `json:"has_more"`
	Data    []recommendedAppDTO `json:"data"`
}

type catalogueAppDTO struct {
	App              catalogueAppInfo `json:"app"`
	AppID            string           `json:"app_id"`
	Description      string           `json:"description"`
	Copyright        string           `json:"copyright"`
	PrivacyPolicy    string           `json:"privacy_policy"`
	CustomDisclaimer string           `json:"custom_disclaimer"`
	Category         string           `json:"category"`
	Position         int              `json:"position"`
	IsListed         bool             `json:"is_listed"`
}

type catalogueAppInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Mode           string `json:"mode"`
	Icon           string `json:"icon"`
	IconBackground string `json:"icon_background"`
}

type catalogueDTO struct {
	RecommendedApps []catalogueAppDTO `json:"recommended_apps"`
	Categories      []string          `json:"categories"`
}

type detailDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Icon           string `json:"icon"`
	IconBackground string `json:"icon_background"`
	Mode           string `json:"mode"`
	ExportData     string `json:"export_data"`
}

type setupStatusDTO struct {
	Step    string  `json:"step"`
	SetupAt *string `json:"setup_at,omitempty"`
}

type insertDTO struct {
	Result string          `json:"result"`
	Data   insertResultDTO `json:"data"`
}

type insertResultDTO struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
}

// serializer renders domain values; filesURL resolves image icons.
type serializer struct {
	filesURL string
}

func (s serializer) page(p recommend.Page) pageDTO {
	data := make([]recommendedAppDTO, 0, len(p.Items))
	for _, item := range p.Items {
		data = append(data, s.item(item))
	}
	return pageDTO{
		Page:    p.Page,
		Limit:   p.PerPage,
		Total:   p.Total,
		HasMore: p.HasNext(),
		Data:    data,
	}
}

func (s serializer) item(item recommend.Item) recommendedAppDTO {
	rec := item.Recommended
	return recommendedAppDTO{
		App: appDTO{
			ID:             item.App.ID,
			Name:           item.App.Name,
			Username:       item.Username,
			Mode:           string(item.App.Mode),
			Icon:           item.App.Icon,
			IconType:       string(item.App.IconType),
			IconURL:        s.iconURL(item.App),
			IconBackground: item.App.IconBackground,
		},
		AppID:            rec.AppID,
		Description:      rec.Description,
		Copyright:        rec.Copyright,
		PrivacyPolicy:    rec.PrivacyPolicy,
		CustomDisclaimer: rec.CustomDisclaimer,
		Category:         rec.Category,
		Position:         rec.Position,
		IsListed:         rec.IsListed,
		CreatedAt:        rec.CreatedAt.Unix(),
	}
}

// iconURL is set only for uploaded image icons.
func (s serializer) iconURL(a app.App) *string {
	if a.IconType != app.IconImage || a.Icon == "" || s.filesURL == "" {
		return nil
	}
	u := strings.TrimRight(s.filesURL, "/") + "/files/" + url.PathEscape(a.Icon) + "/file-preview"
	return &u
}

func (serializer) catalogue(c recommend.Catalogue) catalogueDTO {
	apps := make([]catalogueAppDTO, 0, len(c.Apps))
	for _, a := range c.Apps {
		apps = append(apps, catalogueAppDTO{
			App: catalogueAppInfo{
				ID:             a.AppID,
				Name:           a.Name,
				Mode:           a.Mode,
				Icon:           a.Icon,
				IconBackground: a.IconBackground,
			},
			AppID:            a.AppID,
			Description:      a.Description,
			Copyright:        a.Copyright,
			PrivacyPolicy:    a.PrivacyPolicy,
			CustomDisclaimer: a.CustomDisclaimer,
			Category:         a.Category,
			Position:         a.Position,
			IsListed:         a.IsListed,
		})
	}
	categories := c.Categories
	if categories == nil {
		categories = []string{}
	}
	return catalogueDTO{RecommendedApps: apps, Categories: categories}
}

func (serializer) detail(d recommend.Detail) detailDTO {
	return detailDTO{
		ID:             d.AppID,
		Name:           d.Name,
		Icon:           d.Icon,
		IconBackground: d.IconBackground,
		Mode:           d.Mode,
		ExportData:     d.Export,
	}
}

func (serializer) setupStatus(st setup.Status) setupStatusDTO {
	out := setupStatusDTO{Step: st.Step}
	if st.SetupAt != nil {
		at := st.SetupAt.UTC().Format(time.RFC3339)
		out.SetupAt = &at
	}
	return out
}

func (serializer) insert(res setup.InsertResult) insertDTO {
	return insertDTO{
		Result: "success",
		Data:   insertResultDTO{Email: res.Email, Name: res.Name, Workspace: res.Workspace},
	}
}

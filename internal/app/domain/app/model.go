package app

import "time"

// Mode is the kind of app a tenant builds.
type Mode string

const (
	ModeChat         Mode = "chat"
	ModeCompletion   Mode = "completion"
	ModeAgentChat    Mode = "agent-chat"
	ModeAdvancedChat Mode = "advanced-chat"
	ModeWorkflow     Mode = "workflow"
)

// IconType describes how Icon should be interpreted.
type IconType string

const (
	IconEmoji IconType = "emoji"
	IconImage IconType = "image"
)

// App is an application authored inside a tenant.
type App struct {
	ID             string
	TenantID       string
	Name           string
	Mode           Mode
	Icon           string
	IconType       IconType
	IconBackground string
	IsPublic       bool
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

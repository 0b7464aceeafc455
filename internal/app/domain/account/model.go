package account

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending       Status = "pending"
	StatusUninitialized Status = "uninitialized"
	StatusActive        Status = "active"
	StatusBanned        Status = "banned"
	StatusClosed        Status = "closed"
)

// Role is the role an account holds inside a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleNormal Role = "normal"
)

// Languages lists the supported interface languages. The first entry is the
// default.
var Languages = []string{
	"en-US", "zh-Hans", "zh-Hant", "pt-BR", "es-ES", "fr-FR", "de-DE",
	"ja-JP", "ko-KR", "ru-RU", "it-IT", "uk-UA", "vi-VN", "pl-PL",
}

// DefaultLanguage is Languages[0].
func DefaultLanguage() string {
	return Languages[0]
}

// SupportedLanguage reports whether lang is one of Languages.
func SupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Account is a console user.
type Account struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	InterfaceLanguage string
	Timezone          string
	Status            Status
	LastLoginIP       string
	InitializedAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Initialized reports whether the account finished its first-run flow.
func (a Account) Initialized() bool {
	return a.Status != StatusUninitialized && a.Status != StatusPending
}

// Usable reports whether the account may call the console at all.
func (a Account) Usable() bool {
	return a.Status != StatusBanned && a.Status != StatusClosed
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailPrefix returns the local part of an address, or the address itself
// when it carries no '@'.
func EmailPrefix(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}

// Tenant is a workspace.
type Tenant struct {
	ID        string
	Name      string
	Plan      string
	Status    string
	CreatedAt time.Time
}

// WorkspaceName is the tenant name created for a new owner.
func WorkspaceName(ownerName string) string {
	return ownerName + "'s Workspace"
}

// TenantMember joins an account to a tenant.
type TenantMember struct {
	TenantID  string
	AccountID string
	Role      Role
	Current   bool
	CreatedAt time.Time
}

// Setup records that the deployment has been bootstrapped.
type Setup struct {
	Version string
	SetupAt time.Time
}

// Package directory resolves account emails to display names through the
// external user directory.
package directory

import (
	"context"
	"strings"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/app/domain/account"
	"github.com/R3E-Network/marketplace_console/internal/app/metrics"
	"github.com/R3E-Network/marketplace_console/internal/logging"
)

// Status describes how a lookup was satisfied.
type Status string

const (
	// StatusResolved means every name came from the directory.
	StatusResolved Status = "resolved"
	// StatusPartial means some entries fell back to the email prefix.
	StatusPartial Status = "partial"
	// StatusDegraded means every entry fell back, whether the call failed or
	// the directory knew none of the emails.
	StatusDegraded Status = "degraded"
)

// Resolver fetches display names for emails. The returned map may omit
// emails the directory does not know.
type Resolver interface {
	Resolve(ctx context.Context, emails []string) (map[string]string, error)
}

// Lookup is the outcome of a display-name lookup. Names holds an entry for
// every requested email.
type Lookup struct {
	Names  map[string]string
	Status Status
}

// Name returns the display name for email, falling back to its prefix.
func (l Lookup) Name(email string) string {
	if name, ok := l.Names[email]; ok && name != "" {
		return name
	}
	return account.EmailPrefix(email)
}

const defaultTimeout = 3 * time.Second

// Service wraps a Resolver with a deadline, per-entry fallback, metrics and
// logging. A nil resolver degrades every lookup.
type Service struct {
	resolver Resolver
	timeout  time.Duration
	log      *logging.Logger
}

// New creates a lookup service.
func New(resolver Resolver, timeout time.Duration, log *logging.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logging.NewDefault("directory")
	}
	return &Service{resolver: resolver, timeout: timeout, log: log}
}

// Lookup resolves names for the distinct, non-empty emails given. It never
// fails: directory errors yield a degraded result.
func (s *Service) Lookup(ctx context.Context, emails []string) Lookup {
	unique := dedupe(emails)
	result := Lookup{Names: make(map[string]string, len(unique)), Status: StatusResolved}
	if len(unique) == 0 {
		return result
	}

	start := time.Now()
	var (
		found map[string]string
		err   error
	)
	if s.resolver != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		found, err = s.resolver.Resolve(callCtx, unique)
		cancel()
	}

	fallbacks := 0
	for _, email := range unique {
		name := strings.TrimSpace(found[email])
		if name == "" {
			name = account.EmailPrefix(email)
			fallbacks++
		}
		result.Names[email] = name
	}

	switch {
	case s.resolver == nil || fallbacks == len(unique):
		result.Status = StatusDegraded
	case fallbacks > 0:
		result.Status = StatusPartial
	}

	metrics.RecordDirectoryLookup(string(result.Status), time.Since(start))
	entry := s.log.WithContext(ctx).WithField("status", result.Status).WithField("emails", len(unique)).WithField("fallbacks", fallbacks)
	switch {
	case err != nil:
		entry.WithError(err).Warn("directory lookup failed; using email prefixes")
	case s.resolver == nil:
		entry.Debug("directory not configured; using email prefixes")
	case fallbacks > 0:
		entry.Info("directory lookup incomplete")
	}
	return result
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

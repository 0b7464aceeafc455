package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/R3E-Network/marketplace_console/internal/errors"
	"github.com/R3E-Network/marketplace_console/internal/httputil"
	"github.com/R3E-Network/marketplace_console/internal/logging"
	"github.com/R3E-Network/marketplace_console/internal/middleware"
)

// AuditEntry records one administrative action.
type AuditEntry struct {
	Time     time.Time `json:"time"`
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	User     string    `json:"user,omitempty"`
	Tenant   string    `json:"tenant,omitempty"`
	Result   string    `json:"result"`
	TraceID  string    `json:"trace_id,omitempty"`
	RemoteIP string    `json:"remote_ip,omitempty"`
}

// AuditSink persists audit entries.
type AuditSink interface {
	Write(entry AuditEntry) error
}

// AuditLog keeps the most recent admin actions and forwards them to a sink.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	max     int
	sink    AuditSink
}

// NewAuditLog keeps at most max entries (default 200).
func NewAuditLog(max int, sink AuditSink) *AuditLog {
	if max <= 0 {
		max = 200
	}
	return &AuditLog{max: max, sink: sink}
}

// Record appends the outcome of action on target for the request's caller.
func (l *AuditLog) Record(r *http.Request, action, target string, err error) {
	ctx := r.Context()
	entry := AuditEntry{
		Time:     time.Now().UTC(),
		Action:   action,
		Target:   target,
		User:     logging.GetUserID(ctx),
		Result:   "success",
		TraceID:  logging.GetTraceID(ctx),
		RemoteIP: httputil.ClientIP(r),
	}
	if err != nil {
		entry.Result = "error"
		if svcErr := errors.GetServiceError(err); svcErr != nil {
			entry.Result = string(svcErr.Code)
		}
	}
	if tenant, ok := middleware.CurrentTenant(ctx); ok {
		entry.Tenant = tenant.ID
	}
	l.add(entry)
}

func (l *AuditLog) add(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		_ = l.sink.Write(entry)
	}
}

// Entries returns up to limit of the newest entries, oldest first.
func (l *AuditLog) Entries(limit int) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]AuditEntry, limit)
	copy(out, l.entries[len(l.entries)-limit:])
	return out
}

// FileAuditSink appends audit entries as JSONL.
type FileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileAuditSink opens path for appending. An empty path returns nil.
func NewFileAuditSink(path string) (*FileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &FileAuditSink{file: f}, nil
}

func (s *FileAuditSink) Write(entry AuditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}

// Close closes the underlying file.
func (s *FileAuditSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

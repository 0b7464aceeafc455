package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	svcerrors "github.com/R3E-Network/marketplace_console/internal/errors"
)

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"app_id":"a","extra":1}`))
	rr := httptest.NewRecorder()

	var payload struct {
		AppID string `json:"app_id"`
	}
	if DecodeJSON(rr, req, &payload) {
		t.Fatal("expected decode failure")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"app_id":"a"}{"app_id":"b"}`))
	rr := httptest.NewRecorder()

	var payload struct {
		AppID string `json:"app_id"`
	}
	if DecodeJSON(rr, req, &payload) {
		t.Fatal("expected decode failure")
	}
}

func TestWriteServiceError_MapsTypedAndPlainErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rr := httptest.NewRecorder()
	WriteServiceError(rr, req, fmt.Errorf("wrap: %w", svcerrors.NotFound("App not found")))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "not_found" || body.Message != "App not found" {
		t.Fatalf("body = %+v", body)
	}

	rr = httptest.NewRecorder()
	WriteServiceError(rr, req, fmt.Errorf("db exploded"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "exploded") {
		t.Fatal("internal cause leaked into response")
	}
}

func TestWriteJSON_NilBody(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusNoContent, nil)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Fatalf("ClientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ClientIP = %q", got)
	}
}

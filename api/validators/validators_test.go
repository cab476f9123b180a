package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

type sampleBody struct {
	Code string `json:"code" validate:"required,max=8,referral_code"`
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestDecodeJSONBody(t *testing.T) {
	var body sampleBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"ROOT"}`))
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Code != "ROOT" {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestDecodeJSONBodyRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"code":"ROOT","extra":1}`,
		"missing":       `{}`,
		"too long":      `{"code":"ABCDEFGHIJ"}`,
		"malformed":     `{"code":`,
		"bad charset":   `{"code":"RO OT"}`,
		"two objects":   `{"code":"A"}{"code":"B"}`,
	}
	for name, payload := range cases {
		var body sampleBody
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		err := DecodeJSONBody(req, &body)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestFormatValidationErrorsUsesJSONNames(t *testing.T) {
	var body sampleBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err := DecodeJSONBody(req, &body)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["code"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"distributorId": id.String()})
	got, err := ParseUUIDParam(req, "distributorId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	req = withParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"distributorId": "nope"})
	if _, err := ParseUUIDParam(req, "distributorId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseMonth(t *testing.T) {
	req := withParams(httptest.NewRequest(http.MethodGet, "/?month=2024-13", nil), map[string]string{"month": "2024-03"})
	month, err := ParseMonthParam(req, "month")
	if err != nil || month != types.MonthKey("2024-03") {
		t.Fatalf("unexpected month %q (%v)", month, err)
	}
	if _, err := ParseQueryMonth(req, "month", "2024-01"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for month 13, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	month, err = ParseQueryMonth(req, "month", "2024-01")
	if err != nil || month != "2024-01" {
		t.Fatalf("expected fallback month, got %q (%v)", month, err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  abcdef  ", 4); got != "abcd" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := SanitizeString(" abc ", 0); got != "abc" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
	if got := SanitizeString("ÉQUIPE", 3); got != "ÉQU" {
		t.Fatalf("expected rune-safe clipping, got %q", got)
	}
}

func TestReferralCodeToleratesPadding(t *testing.T) {
	var body sampleBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":" LEAF_1 "}`))
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	got, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=10", nil), "limit", 25, 1, 100)
	if err != nil || got != 10 {
		t.Fatalf("expected 10, got %d err=%v", got, err)
	}
	got, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 25, 1, 100)
	if err != nil || got != 25 {
		t.Fatalf("expected default 25, got %d err=%v", got, err)
	}
	for _, raw := range []string{"abc", "0", "101"} {
		_, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil), "limit", 25, 1, 100)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("limit=%s: expected validation error, got %v", raw, err)
		}
	}
}

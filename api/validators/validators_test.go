package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

type body struct {
	Name string `json:"name" validate:"required,max=5"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"toolong"}`))
	var dest body
	err := DecodeJSONBody(req, &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["name"] != "must be at most 5" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","extra":1}`))
	var dest body
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withParam("mealId", id.String())
	got, err := ParseUUIDParam(req, "mealId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}

	if _, err := ParseUUIDParam(withParam("mealId", "nope"), "mealId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 20, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if v, err := ParseQueryInt(req, "limit", 20, 1, 100); err != nil || v != 20 {
		t.Fatalf("expected default 20, got %d (%v)", v, err)
	}
}

func withParam(key, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type mealBody struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Ingredients []struct {
		Name     string `json:"name" validate:"notblank"`
		Quantity int    `json:"quantity" validate:"gte=0"`
	} `json:"ingredients" validate:"required,min=1,max=100,dive"`
}

func TestDecodeJSONBodyKeysNestedErrorsByPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"   ","ingredients":[{"name":"rice","quantity":1},{"name":"","quantity":-2}]}`))
	var dest mealBody
	typed := pkgerrors.As(DecodeJSONBody(req, &dest))
	if typed == nil {
		t.Fatal("expected validation error")
	}
	details, _ := typed.Details().(map[string]string)
	if details["name"] != "is required" {
		t.Fatalf("expected blank name to be rejected, got %#v", details)
	}
	if details["ingredients[1].name"] != "is required" || details["ingredients[1].quantity"] != "must be 0 or greater" {
		t.Fatalf("unexpected nested details %#v", details)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var dest body
	if err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", nil), &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}{"name":"again"}`))
	if err := DecodeJSONBody(req, &dest); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for trailing data, got %v", err)
	}
}

func TestDecodeJSONBodyNamesMistypedField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"pasta","ingredients":[{"name":"salt","quantity":"lots"}]}`))
	var dest mealBody
	typed := pkgerrors.As(DecodeJSONBody(req, &dest))
	if typed == nil {
		t.Fatal("expected validation error")
	}
	details, _ := typed.Details().(map[string]string)
	if details["ingredients.quantity"] != "must be int" {
		t.Fatalf("unexpected details %#v", details)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	var dest body
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  bob\x00\t ", 32); got != "bob" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("crème brûlée", 5); got != "crème" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unreadOnly=true", nil)
	if v, err := ParseQueryBool(req, "unreadOnly", false); err != nil || !v {
		t.Fatalf("expected true, got %v (%v)", v, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/?unreadOnly=maybe", nil)
	if _, err := ParseQueryBool(req, "unreadOnly", false); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
)

const testBaseURL = "http://localhost:8000/fhir"

func newTestServer(store *core.MemStore) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Tenant("t1"))
	NewHandler(store, testBaseURL).RegisterRoutes(e.Group("/fhir"))
	return e
}

func doRequest(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, "application/fhir+json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seedPatient(t *testing.T, store *core.MemStore, tenantID, family string, active bool) core.Resource {
	t.Helper()
	created, err := store.Create(context.Background(), &core.Patient{
		Meta:   core.Meta{TenantID: tenantID},
		Active: active,
		Family: family,
		Given:  []string{"Test"},
		Gender: core.GenderUnknown,
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return created
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return m
}

func issueCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	m := decodeJSON(t, rec)
	if m["resourceType"] != "OperationOutcome" {
		t.Fatalf("error body is not an OperationOutcome: %s", rec.Body.String())
	}
	issues := m["issue"].([]any)
	return issues[0].(map[string]any)["code"].(string)
}

func TestMetadata(t *testing.T) {
	e := newTestServer(core.NewMemStore())
	rec := doRequest(e, http.MethodGet, "/fhir/metadata", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	m := decodeJSON(t, rec)
	if m["resourceType"] != "CapabilityStatement" {
		t.Errorf("resourceType = %v", m["resourceType"])
	}
}

func TestRead(t *testing.T) {
	store := core.NewMemStore()
	seedPatient(t, store, "t1", "Doe", true)
	e := newTestServer(store)

	rec := doRequest(e, http.MethodGet, "/fhir/Patient/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("ETag"); got != `W/"Patient/1-1"` {
		t.Errorf("ETag = %q", got)
	}
	if rec.Header().Get("Last-Modified") == "" {
		t.Error("missing Last-Modified header")
	}
	m := decodeJSON(t, rec)
	if m["resourceType"] != "Patient" || m["id"] != "1" {
		t.Errorf("body = %v", m)
	}
}

func TestRead_NotFound(t *testing.T) {
	e := newTestServer(core.NewMemStore())

	tests := []struct {
		name   string
		target string
	}{
		{"unknown id", "/fhir/Patient/99"},
		{"non-numeric id", "/fhir/Patient/abc"},
		{"unsupported type", "/fhir/Device/1"},
		{"canonical name not on the wire", "/fhir/MedicationOrder/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want 404", rec.Code)
			}
			if code := issueCode(t, rec); code != "not-found" {
				t.Errorf("issue code = %q", code)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	e := newTestServer(core.NewMemStore())

	body := `{"resourceType":"Patient","active":true,"name":[{"family":"Doe","given":["Jane"]}],"gender":"female"}`
	rec := doRequest(e, http.MethodPost, "/fhir/Patient", body, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != testBaseURL+"/Patient/1" {
		t.Errorf("Location = %q", got)
	}
	if got := rec.Header().Get("ETag"); got != `W/"Patient/1-1"` {
		t.Errorf("ETag = %q", got)
	}
	m := decodeJSON(t, rec)
	if m["id"] != "1" {
		t.Errorf("created id = %v", m["id"])
	}
}

func TestCreate_Errors(t *testing.T) {
	e := newTestServer(core.NewMemStore())

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			"type mismatch between path and body",
			"/fhir/Patient",
			`{"resourceType":"Observation","status":"final","code":{"coding":[{"code":"1"}]},"subject":{"reference":"Patient/1"}}`,
			http.StatusUnprocessableEntity, "invalid",
		},
		{
			"validation failure",
			"/fhir/Patient",
			`{"resourceType":"Patient","name":[{"given":["J"]}]}`,
			http.StatusUnprocessableEntity, "invalid",
		},
		{
			"malformed JSON",
			"/fhir/Patient",
			`{"resourceType":`,
			http.StatusUnprocessableEntity, "invalid",
		},
		{
			"unsupported path type",
			"/fhir/Device",
			`{"resourceType":"Device"}`,
			http.StatusNotFound, "not-found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, tt.target, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d\n%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if code := issueCode(t, rec); code != tt.wantCode {
				t.Errorf("issue code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestSearch_Filters(t *testing.T) {
	store := core.NewMemStore()
	seedPatient(t, store, "t1", "Doe", true)
	seedPatient(t, store, "t1", "Roe", false)
	seedPatient(t, store, "t1", "Doe", false)
	e := newTestServer(store)

	rec := doRequest(e, http.MethodGet, "/fhir/Patient?family=Doe", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	m := decodeJSON(t, rec)
	if m["total"] != float64(2) {
		t.Errorf("total = %v, want 2", m["total"])
	}

	// Unknown parameters are ignored, not rejected, and stay out of links.
	rec = doRequest(e, http.MethodGet, "/fhir/Patient?family=Doe&frobnicate=yes", "", nil)
	m = decodeJSON(t, rec)
	if m["total"] != float64(2) {
		t.Errorf("total with unknown param = %v, want 2", m["total"])
	}
	self := m["link"].([]any)[0].(map[string]any)["url"].(string)
	if strings.Contains(self, "frobnicate") {
		t.Errorf("unknown param leaked into self link: %s", self)
	}
}

func TestSearch_TenantIsolation(t *testing.T) {
	store := core.NewMemStore()
	seedPatient(t, store, "t1", "Doe", true)
	e := newTestServer(store)

	rec := doRequest(e, http.MethodGet, "/fhir/Patient", "", map[string]string{"X-Tenant-ID": "t2"})
	m := decodeJSON(t, rec)
	if m["total"] != float64(0) {
		t.Errorf("foreign tenant saw total = %v", m["total"])
	}
}

func TestSearch_Pagination(t *testing.T) {
	store := core.NewMemStore()
	for i := 0; i < 5; i++ {
		seedPatient(t, store, "t1", "Doe", true)
	}
	e := newTestServer(store)

	rec := doRequest(e, http.MethodGet, "/fhir/Patient?_count=2&_page=2", "", nil)
	m := decodeJSON(t, rec)
	if m["total"] != float64(5) {
		t.Fatalf("total = %v, want 5", m["total"])
	}
	entries := m["entry"].([]any)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0].(map[string]any)["fullUrl"].(string)
	if first != testBaseURL+"/Patient/3" {
		t.Errorf("page 2 starts at %q, want Patient/3", first)
	}

	links := map[string]string{}
	for _, l := range m["link"].([]any) {
		lm := l.(map[string]any)
		links[lm["relation"].(string)] = lm["url"].(string)
	}
	if links["next"] != testBaseURL+"/Patient?_count=2&_page=3" {
		t.Errorf("next = %q", links["next"])
	}
	if links["previous"] != testBaseURL+"/Patient?_count=2&_page=1" {
		t.Errorf("previous = %q", links["previous"])
	}
}

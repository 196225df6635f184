package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
)

func newHandlerServer(t *testing.T, handshakeErr error) (*echo.Echo, *Service) {
	t.Helper()
	svc := newTestService(t, handshakeErr, false)
	e := echo.New()
	e.Use(middleware.Tenant("t1"))
	NewHandler(svc).RegisterRoutes(e.Group("/fhir"))
	return e, svc
}

func doJSON(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"resourceType": "Subscription",
	"criteria": "Patient?active=true",
	"channel": {
		"type": "rest-hook",
		"endpoint": "https://hooks.example.com/recv",
		"payload": "application/fhir+json",
		"header": ["X-Webhook-Secret: s3cret"]
	}
}`

func TestHandler_Create(t *testing.T) {
	e, svc := newHandlerServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/fhir/Subscription", createBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var w wireSubscription
	if err := json.Unmarshal(rec.Body.Bytes(), &w); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if w.Status != "active" {
		t.Errorf("status = %q, want active", w.Status)
	}
	if w.Channel.Endpoint != "https://hooks.example.com/recv" {
		t.Errorf("endpoint = %q", w.Channel.Endpoint)
	}
	// The shared secret must never be echoed back.
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Error("response leaked the channel secret")
	}
	if loc := rec.Header().Get("Location"); loc != "/fhir/Subscription/"+w.ID {
		t.Errorf("Location = %q", loc)
	}

	id, err := uuid.Parse(w.ID)
	if err != nil {
		t.Fatalf("response id is not a UUID: %q", w.ID)
	}
	stored, err := svc.Get(context.Background(), "t1", id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.Channel.Secret != "s3cret" {
		t.Errorf("stored secret = %q, want the channel header value", stored.Channel.Secret)
	}
}

func TestHandler_Create_HandshakeFailureSurfacesError(t *testing.T) {
	e, _ := newHandlerServer(t, errors.New("connection refused"))

	rec := doJSON(e, http.MethodPost, "/fhir/Subscription", createBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var w wireSubscription
	json.Unmarshal(rec.Body.Bytes(), &w)
	if w.Status != "error" {
		t.Errorf("status = %q, want error", w.Status)
	}
	if !strings.Contains(w.Error, "handshake failed") {
		t.Errorf("error = %q", w.Error)
	}
}

func TestHandler_Create_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong resource type", `{"resourceType":"Patient","criteria":"Patient","channel":{"endpoint":"https://hooks.example.com/r"}}`},
		{"unsupported channel type", `{"resourceType":"Subscription","criteria":"Patient","channel":{"type":"websocket","endpoint":"https://hooks.example.com/r"}}`},
		{"invalid criteria", `{"resourceType":"Subscription","criteria":"Device?x=1","channel":{"endpoint":"https://hooks.example.com/r"}}`},
		{"missing endpoint", `{"resourceType":"Subscription","criteria":"Patient","channel":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newHandlerServer(t, nil)
			rec := doJSON(e, http.MethodPost, "/fhir/Subscription", tt.body, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422\n%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_Create_DuplicateConflicts(t *testing.T) {
	e, _ := newHandlerServer(t, nil)

	if rec := doJSON(e, http.MethodPost, "/fhir/Subscription", createBody, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d", rec.Code)
	}
	rec := doJSON(e, http.MethodPost, "/fhir/Subscription", createBody, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: status = %d, want 409", rec.Code)
	}
}

func TestHandler_Lifecycle(t *testing.T) {
	e, _ := newHandlerServer(t, nil)

	rec := doJSON(e, http.MethodPost, "/fhir/Subscription", createBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d", rec.Code)
	}
	var created wireSubscription
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(e, http.MethodGet, "/fhir/Subscription/"+created.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}

	// Another tenant cannot see it.
	rec = doJSON(e, http.MethodGet, "/fhir/Subscription/"+created.ID, "", map[string]string{"X-Tenant-ID": "t2"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign tenant get: status = %d, want 404", rec.Code)
	}

	rec = doJSON(e, http.MethodDelete, "/fhir/Subscription/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: status = %d, want 204", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/fhir/Subscription/"+created.ID, "", nil)
	var got wireSubscription
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != "off" {
		t.Errorf("status after deactivation = %q, want off", got.Status)
	}

	rec = doJSON(e, http.MethodPost, "/fhir/Subscription/"+created.ID+"/$reactivate", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reactivate: status = %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != "active" {
		t.Errorf("status after reactivation = %q, want active", got.Status)
	}
}

func TestHandler_List(t *testing.T) {
	e, svc := newHandlerServer(t, nil)
	ctx := context.Background()

	for _, endpoint := range []string{"https://hooks.example.com/a", "https://hooks.example.com/b"} {
		sub := newTestSubscription("Patient")
		sub.Channel.Endpoint = endpoint
		if err := svc.Create(ctx, sub); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	rec := doJSON(e, http.MethodGet, "/fhir/Subscription", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var bundle struct {
		ResourceType string `json:"resourceType"`
		Type         string `json:"type"`
		Total        int    `json:"total"`
		Entry        []struct {
			Resource wireSubscription `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if bundle.ResourceType != "Bundle" || bundle.Type != "searchset" {
		t.Errorf("bundle header = %s/%s", bundle.ResourceType, bundle.Type)
	}
	if bundle.Total != 2 || len(bundle.Entry) != 2 {
		t.Errorf("total = %d entries = %d, want 2/2", bundle.Total, len(bundle.Entry))
	}
}

func TestHandler_BadID(t *testing.T) {
	e, _ := newHandlerServer(t, nil)

	for _, target := range []string{
		"/fhir/Subscription/not-a-uuid",
		"/fhir/Subscription/" + uuid.New().String(),
	} {
		rec := doJSON(e, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", target, rec.Code)
		}
	}
}

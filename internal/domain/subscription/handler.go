package subscription

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/platform/fhir"
	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
	"github.com/ngsanogo/keneyapp/pkg/pagination"
)

// secretHeader carries the caller-supplied shared secret inside the FHIR
// channel.header list, mirroring how rest-hook channels convey headers.
const secretHeader = "X-Webhook-Secret"

// Handler exposes the FHIR Subscription endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a subscription handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes binds the Subscription routes to the FHIR group. Static
// segments take precedence over the generic resource routes, so these
// coexist with /:type and /:type/:id.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/Subscription", h.Create)
	g.GET("/Subscription", h.List)
	g.GET("/Subscription/:id", h.Get)
	g.DELETE("/Subscription/:id", h.Deactivate)
	g.POST("/Subscription/:id/$reactivate", h.Reactivate)
}

// wireSubscription is the FHIR R4 Subscription resource shape.
type wireSubscription struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Status       string      `json:"status,omitempty"`
	Criteria     string      `json:"criteria"`
	Channel      wireChannel `json:"channel"`
	Error        string      `json:"error,omitempty"`
	Meta         *fhir.Meta  `json:"meta,omitempty"`
}

type wireChannel struct {
	Type     string   `json:"type"`
	Endpoint string   `json:"endpoint"`
	Payload  string   `json:"payload,omitempty"`
	Header   []string `json:"header,omitempty"`
}

func toWire(s *Subscription) *wireSubscription {
	w := &wireSubscription{
		ResourceType: "Subscription",
		ID:           s.ID.String(),
		Status:       string(s.Status),
		Criteria:     s.Topic.Criteria,
		Channel: wireChannel{
			Type:     "rest-hook",
			Endpoint: s.Channel.Endpoint,
			Payload:  "application/fhir+json",
		},
		Meta: &fhir.Meta{LastUpdated: timePtr(s.UpdatedAt)},
	}
	if s.ErrorText != nil {
		w.Error = *s.ErrorText
	}
	return w
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func respondError(c echo.Context, err error) error {
	status, outcome := fhir.MapError(err)
	return c.JSON(status, outcome)
}

// Create handles POST /fhir/Subscription.
func (h *Handler) Create(c echo.Context) error {
	var w wireSubscription
	if err := c.Bind(&w); err != nil {
		return respondError(c, core.NewValidationError("", "malformed Subscription payload"))
	}
	if w.ResourceType != "Subscription" {
		return respondError(c, core.NewValidationError("resourceType", "must be \"Subscription\", got %q", w.ResourceType))
	}
	if w.Channel.Type != "" && w.Channel.Type != "rest-hook" {
		return respondError(c, core.NewValidationError("channel.type", "only rest-hook channels are supported"))
	}

	sub := &Subscription{
		TenantID: middleware.TenantFromContext(c),
		Topic:    Topic{Criteria: w.Criteria},
		Channel: Channel{
			Endpoint: w.Channel.Endpoint,
			Secret:   secretFromHeaders(w.Channel.Header),
		},
	}
	if err := h.svc.Create(c.Request().Context(), sub); err != nil {
		return respondError(c, err)
	}

	c.Response().Header().Set("Location", c.Request().URL.Path+"/"+sub.ID.String())
	return c.JSON(http.StatusCreated, toWire(sub))
}

// secretFromHeaders extracts the shared secret from the channel header
// list, if the caller supplied one.
func secretFromHeaders(headers []string) string {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), secretHeader) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// Get handles GET /fhir/Subscription/:id.
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, &core.NotFoundError{Kind: "Subscription", ID: c.Param("id")})
	}
	sub, err := h.svc.Get(c.Request().Context(), middleware.TenantFromContext(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toWire(sub))
}

// List handles GET /fhir/Subscription.
func (h *Handler) List(c echo.Context) error {
	page := pagination.FromContext(c)

	subs, total, err := h.svc.List(c.Request().Context(), middleware.TenantFromContext(c), page.PageSize, page.Offset())
	if err != nil {
		return respondError(c, err)
	}

	entries := make([]echo.Map, len(subs))
	for i, s := range subs {
		entries[i] = echo.Map{"resource": toWire(s), "search": echo.Map{"mode": "match"}}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"resourceType": "Bundle",
		"type":         "searchset",
		"total":        total,
		"entry":        entries,
	})
}

// Deactivate handles DELETE /fhir/Subscription/:id by turning the
// subscription off rather than erasing its history.
func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, &core.NotFoundError{Kind: "Subscription", ID: c.Param("id")})
	}
	if err := h.svc.Deactivate(c.Request().Context(), middleware.TenantFromContext(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reactivate handles POST /fhir/Subscription/:id/$reactivate, re-running
// the handshake probe after a terminal delivery failure.
func (h *Handler) Reactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, &core.NotFoundError{Kind: "Subscription", ID: c.Param("id")})
	}
	sub, err := h.svc.Reactivate(c.Request().Context(), middleware.TenantFromContext(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toWire(sub))
}

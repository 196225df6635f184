// Package api exposes the generic FHIR R4 REST surface: capability
// discovery, read, create, and paginated search over every supported
// resource type.
package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/platform/fhir"
	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
	"github.com/ngsanogo/keneyapp/pkg/pagination"
)

// Store is the persistence surface the handler consumes.
type Store interface {
	core.Reader
	core.Writer
}

// Handler serves the generic FHIR resource endpoints.
type Handler struct {
	store      Store
	baseURL    string
	capability *fhir.CapabilityStatement
}

// NewHandler creates a FHIR API handler. baseURL is the absolute URL of the
// FHIR group without a trailing slash, e.g. "http://localhost:8000/fhir".
func NewHandler(store Store, baseURL string) *Handler {
	return &Handler{
		store:      store,
		baseURL:    baseURL,
		capability: fhir.NewCapabilityStatement(baseURL),
	}
}

// RegisterRoutes binds the generic resource routes. Static routes such as
// /Subscription registered by other handlers take precedence over :type.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.Metadata)
	g.GET("/:type", h.Search)
	g.POST("/:type", h.Create)
	g.GET("/:type/:id", h.Read)
}

func respondError(c echo.Context, err error) error {
	status, outcome := fhir.MapError(err)
	return c.JSON(status, outcome)
}

// kindFromPath resolves the :type path segment to a canonical kind.
func kindFromPath(c echo.Context) (core.Kind, error) {
	wireType := c.Param("type")
	kind, ok := core.KindFromWireType(wireType)
	if !ok {
		return "", &core.NotFoundError{Kind: core.Kind(wireType), ID: c.Param("id")}
	}
	return kind, nil
}

// Metadata handles GET /fhir/metadata.
func (h *Handler) Metadata(c echo.Context) error {
	return c.JSON(http.StatusOK, h.capability)
}

// Read handles GET /fhir/:type/:id. Responses carry a weak ETag derived
// from the resource version and a Last-Modified header.
func (h *Handler) Read(c echo.Context) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return respondError(c, &core.NotFoundError{Kind: kind, ID: c.Param("id")})
	}

	r, err := h.store.GetByID(c.Request().Context(), middleware.TenantFromContext(c), kind, id)
	if err != nil {
		return respondError(c, err)
	}

	meta := r.ResourceMeta()
	c.Response().Header().Set("ETag", meta.WeakETag(kind))
	c.Response().Header().Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	return c.JSON(http.StatusOK, fhir.ToWire(r))
}

// Create handles POST /fhir/:type. The body must be a FHIR resource of the
// type named in the path.
func (h *Handler) Create(c echo.Context) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return respondError(c, err)
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return respondError(c, core.NewValidationError("", "unreadable request body"))
	}

	r, err := fhir.FromWire(payload, middleware.TenantFromContext(c))
	if err != nil {
		return respondError(c, err)
	}
	if r.Kind() != kind {
		return respondError(c, core.NewValidationError("resourceType",
			"must be %q, got %q", kind.WireType(), r.Kind().WireType()))
	}

	created, err := h.store.Create(c.Request().Context(), r)
	if err != nil {
		return respondError(c, err)
	}

	meta := created.ResourceMeta()
	c.Response().Header().Set("Location", h.baseURL+"/"+meta.Reference(kind))
	c.Response().Header().Set("ETag", meta.WeakETag(kind))
	return c.JSON(http.StatusCreated, fhir.ToWire(created))
}

// Search handles GET /fhir/:type. Unknown search parameters are ignored;
// only the per-kind allow-listed fields filter results. A stored resource
// that cannot be converted fails the whole request.
func (h *Handler) Search(c echo.Context) error {
	kind, err := kindFromPath(c)
	if err != nil {
		return respondError(c, err)
	}

	page := pagination.FromContext(c)

	filters := make(map[string]string)
	accepted := url.Values{}
	for key, values := range c.QueryParams() {
		if strings.HasPrefix(key, "_") || len(values) == 0 {
			continue
		}
		if !core.SearchableField(kind, key) {
			continue
		}
		filters[key] = values[0]
		accepted.Set(key, values[0])
	}

	resources, total, err := h.store.List(c.Request().Context(), core.ListQuery{
		TenantID: middleware.TenantFromContext(c),
		Kind:     kind,
		Filters:  filters,
		Offset:   page.Offset(),
		Limit:    page.PageSize,
	})
	if err != nil {
		return respondError(c, err)
	}

	wire := make([]fhir.WireResource, len(resources))
	for i, r := range resources {
		wire[i] = fhir.ToWire(r)
	}

	bundle := fhir.NewSearchset(wire, fhir.SearchsetParams{
		BaseURL:  h.baseURL,
		Type:     kind.WireType(),
		Query:    accepted,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    total,
	})
	return c.JSON(http.StatusOK, bundle)
}

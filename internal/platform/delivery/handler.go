package delivery

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
	"github.com/ngsanogo/keneyapp/internal/platform/fhir"
	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
	"github.com/ngsanogo/keneyapp/pkg/pagination"
)

// Handler exposes operational visibility into the delivery pipeline.
type Handler struct {
	registry *subscription.Service
	attempts AttemptStore
}

// NewHandler creates a delivery handler.
func NewHandler(registry *subscription.Service, attempts AttemptStore) *Handler {
	return &Handler{registry: registry, attempts: attempts}
}

// RegisterRoutes binds the attempt-listing route to the FHIR group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/Subscription/:id/attempts", h.ListAttempts)
}

type wireAttempt struct {
	ID              string  `json:"id"`
	ResourceRef     string  `json:"resourceRef"`
	ResourceVersion int     `json:"resourceVersion"`
	Mutation        string  `json:"mutation"`
	AttemptNumber   int     `json:"attemptNumber"`
	ScheduledAt     string  `json:"scheduledAt"`
	Result          string  `json:"result"`
	LastError       *string `json:"lastError,omitempty"`
	DeliveredAt     *string `json:"deliveredAt,omitempty"`
}

// ListAttempts handles GET /fhir/Subscription/:id/attempts. The
// subscription lookup is tenant-scoped so one tenant cannot inspect
// another's delivery history.
func (h *Handler) ListAttempts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respondError(c, &core.NotFoundError{Kind: "Subscription", ID: c.Param("id")})
	}
	if _, err := h.registry.Get(c.Request().Context(), middleware.TenantFromContext(c), id); err != nil {
		return respondError(c, err)
	}

	page := pagination.FromContext(c)

	attempts, total, err := h.attempts.ListBySubscription(c.Request().Context(), id, page.PageSize, page.Offset())
	if err != nil {
		return respondError(c, err)
	}

	items := make([]wireAttempt, len(attempts))
	for i, a := range attempts {
		items[i] = wireAttempt{
			ID:              a.ID.String(),
			ResourceRef:     a.ResourceRef,
			ResourceVersion: a.ResourceVersion,
			Mutation:        string(a.Mutation),
			AttemptNumber:   a.AttemptNumber,
			ScheduledAt:     a.ScheduledAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Result:          string(a.Result),
		}
		items[i].LastError = a.LastError
		if a.DeliveredAt != nil {
			s := a.DeliveredAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			items[i].DeliveredAt = &s
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subscription": id.String(),
		"total":        total,
		"attempts":     items,
	})
}

func respondError(c echo.Context, err error) error {
	status, outcome := fhir.MapError(err)
	return c.JSON(status, outcome)
}

package suggestion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/drrobo/assistant/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/normalize", h.Normalize)

	api.POST("/analyses", h.Analyze)
	api.GET("/analyses/:id", h.GetAnalysis)
	api.GET("/sessions/:session_id/analyses", h.ListAnalyses)

	api.GET("/sessions/:session_id/suggestions", h.ListSuggestions)
	api.DELETE("/sessions/:session_id/suggestions", h.ClearSession)
	api.GET("/suggestions/:id", h.GetSuggestion)
	api.GET("/suggestions/:id/actions", h.GetActions)
	api.POST("/suggestions/:id/approve", h.Approve)
	api.POST("/suggestions/:id/reject", h.Reject)
	api.PUT("/suggestions/:id", h.Modify)
}

// httpError maps service errors onto status codes.
func httpError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// requestError keeps the status of an *echo.HTTPError raised while reading
// the body, such as 413 from the body limit, and maps anything else to 400.
func requestError(err error, msg string) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		var inner *echo.HTTPError
		if errors.As(he.Internal, &inner) {
			return inner
		}
		return he
	}
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// -- Normalize --

// Normalize accepts the agent output as the raw request body. JSON bodies
// are decoded as JSON values; anything else is treated as text.
func (h *Handler) Normalize(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return requestError(err, "could not read body")
	}

	var in RawInput
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		in = DetectInput(body)
	} else {
		in = TextInput(string(body))
	}

	items := h.svc.Normalize(in)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

// -- Analysis --

func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return requestError(err, err.Error())
	}
	result, err := h.svc.Analyze(c.Request().Context(), req)
	if err != nil {
		return httpError(err, "analysis not found")
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetAnalysis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAnalysis(c.Request().Context(), id)
	if err != nil {
		return httpError(err, "analysis not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAnalyses(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAnalyses(c.Request().Context(), c.Param("session_id"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, "session not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Suggestions --

func (h *Handler) ListSuggestions(c echo.Context) error {
	items, err := h.svc.ListSuggestions(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return httpError(err, "session not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) ClearSession(c echo.Context) error {
	if err := h.svc.ClearSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return httpError(err, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSuggestion(c echo.Context) error {
	s, err := h.svc.GetSuggestion(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, "suggestion not found")
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) GetActions(c echo.Context) error {
	items, err := h.svc.GetActions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err, "suggestion not found")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Approve(c echo.Context) error {
	return h.review(c, h.svc.ApproveSuggestion)
}

func (h *Handler) Reject(c echo.Context) error {
	return h.review(c, h.svc.RejectSuggestion)
}

func (h *Handler) Modify(c echo.Context) error {
	return h.review(c, h.svc.ModifySuggestion)
}

type reviewFunc func(ctx context.Context, id string, req ActionRequest) (*Suggestion, error)

func (h *Handler) review(c echo.Context, fn reviewFunc) error {
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return requestError(err, err.Error())
	}
	s, err := fn(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return httpError(err, "suggestion not found")
	}
	return c.JSON(http.StatusOK, s)
}

package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/itturia/internal/store"
)

// RunsHandler serves finished runs from the run store.
type RunsHandler struct {
	store store.RunStore
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// Get a run
//
//	@Summary	Finished run by id
//	@Tags		runs
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		id	path	string	true	"Run ID"
//	@Produce	json
//	@Success	200	{object}	store.Run
//	@Failure	404	{object}	HTTPError
//	@Router		/api/runs/{id} [get]
func (h *RunsHandler) get(c echo.Context) error {
	ctx, span := serverTracer.Start(c.Request().Context(), "RunsHandler.get")
	defer span.End()
	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("run_id", id))
	run, err := h.store.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// List runs
//
//	@Summary	Most recent runs, newest first
//	@Tags		runs
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Maximum runs (default 20)"
//	@Produce	json
//	@Success	200	{array}	store.Run
//	@Router		/api/runs [get]
func (h *RunsHandler) list(c echo.Context) error {
	ctx, span := serverTracer.Start(c.Request().Context(), "RunsHandler.list")
	defer span.End()
	limit := 0
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		limit = n
	}
	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
	"github.com/mohammad-safakhou/itturia/internal/store"
	"github.com/mohammad-safakhou/itturia/provider"
)

// SearchHandler runs the retrieval-refinement loop for HTTP callers.
type SearchHandler struct {
	srv *Server
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.POST("/search/stream", h.stream)
}

// prepare validates the payload and resolves the loop for it.
func (h *SearchHandler) prepare(c echo.Context) (SearchRequest, *core.Orchestrator, string, error) {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return req, nil, "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, nil, "", echo.NewHTTPError(http.StatusBadRequest, "No query provided")
	}
	if err := c.Validate(&req); err != nil {
		return req, nil, "", err
	}
	if !h.srv.Healthy() {
		return req, nil, "", echo.NewHTTPError(http.StatusServiceUnavailable, "Search index is not available. Please check the index directory.")
	}
	orch, name, err := h.srv.orchestrator(req.Provider)
	if errors.Is(err, provider.ErrUnknownProvider) {
		return req, nil, "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return req, nil, "", echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return req, orch, name, nil
}

func (h *SearchHandler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := c.Request().Context()
	if d := h.srv.deps.Config.Server.RequestTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// Search
//
//	@Summary		Answer a question
//	@Description	Runs the compose, retrieve, evaluate loop and synthesizes an answer from the accumulated evidence
//	@Tags			search
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		SearchRequest	true	"Question"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		503		{object}	HTTPError
//	@Router			/api/search [post]
func (h *SearchHandler) search(c echo.Context) error {
	req, orch, providerName, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	ctx, span := serverTracer.Start(ctx, "SearchHandler.search")
	defer span.End()
	span.SetAttributes(attribute.String("provider", providerName))

	res, err := orch.Run(ctx, core.Request{Question: req.Query, NumResults: req.NumResults, MaxIterations: req.MaxIterations})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c.JSON(http.StatusOK, SearchResponse{Success: false, Message: err.Error()})
	}
	runID := h.save(ctx, req.Query, providerName, res)
	return c.JSON(http.StatusOK, SearchResponse{
		Success: true,
		RunID:   runID,
		Results: &SearchResults{Steps: res.Steps, FinalResult: res},
	})
}

// Stream a search
//
//	@Summary		Answer a question, streaming steps
//	@Description	Emits one "step" event per loop step in order, then a single "result" event
//	@Tags			search
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			payload	body		SearchRequest	true	"Question"
//	@Success		200		{string}	string
//	@Failure		400		{object}	HTTPError
//	@Failure		503		{object}	HTTPError
//	@Router			/api/search/stream [post]
func (h *SearchHandler) stream(c echo.Context) error {
	req, orch, providerName, err := h.prepare(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	ctx, span := serverTracer.Start(ctx, "SearchHandler.stream")
	defer span.End()
	span.SetAttributes(attribute.String("provider", providerName))

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	em := core.NewChannelEmitter()
	done := make(chan core.Result, 1)
	go func() {
		res, err := orch.Run(ctx, core.Request{Question: req.Query, NumResults: req.NumResults, MaxIterations: req.MaxIterations, Emitter: em})
		if err != nil {
			em.Close()
		}
		done <- res
	}()

	runID := uuid.NewString()
	for ev := range em.Events() {
		var werr error
		switch {
		case ev.Step != nil:
			werr = writeEvent(resp, "step", ev.Step)
		case ev.Result != nil:
			werr = writeEvent(resp, "result", StreamResult{RunID: runID, FinalResult: *ev.Result})
		}
		if werr != nil {
			em.Stop()
			cancel()
			span.RecordError(werr)
			h.srv.logger.Debug("stream client went away", zap.Error(werr))
			break
		}
		flusher.Flush()
	}
	res := <-done
	if res.Outcome != "" {
		h.saveAs(context.WithoutCancel(ctx), runID, req.Query, providerName, res)
	}
	return nil
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

func (h *SearchHandler) save(ctx context.Context, question, providerName string, res core.Result) string {
	id := uuid.NewString()
	h.saveAs(ctx, id, question, providerName, res)
	return id
}

// saveAs stores the run; failures are logged, the answer is still returned.
func (h *SearchHandler) saveAs(ctx context.Context, id, question, providerName string, res core.Result) {
	run := store.Run{
		ID:        id,
		Question:  question,
		Provider:  providerName,
		Outcome:   res.Outcome,
		Rounds:    res.Rounds,
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.srv.deps.Store.SaveRun(ctx, run); err != nil {
		h.srv.logger.Warn("save run failed", zap.String("run_id", id), zap.Error(err))
	}
}

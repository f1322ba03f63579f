package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/itturia/internal/helpers"
	"github.com/mohammad-safakhou/itturia/internal/sefaria"
)

// TextsHandler proxies reference lookups to Sefaria.
type TextsHandler struct {
	client *sefaria.Client
}

func (h *TextsHandler) Register(g *echo.Group) {
	g.GET("/texts/:ref", h.text)
	g.GET("/commentaries/:ref", h.commentaries)
	g.GET("/parasha", h.parasha)
}

func refParam(c echo.Context) (string, error) {
	ref, err := url.PathUnescape(c.Param("ref"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid reference")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "reference required")
	}
	return ref, nil
}

// upstreamError maps Sefaria failures onto HTTP statuses.
func upstreamError(err error) error {
	var se *helpers.StatusError
	switch {
	case errors.Is(err, sefaria.ErrNoText), errors.Is(err, sefaria.ErrNoParasha):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "reference not found")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

// Text
//
//	@Summary	Text of a reference
//	@Tags		texts
//	@Security	BearerAuth
//	@Param		ref	path	string	true	"Reference, e.g. Genesis 1:1"
//	@Produce	json
//	@Success	200	{object}	sefaria.Text
//	@Failure	404	{object}	HTTPError
//	@Failure	502	{object}	HTTPError
//	@Router		/api/texts/{ref} [get]
func (h *TextsHandler) text(c echo.Context) error {
	ref, err := refParam(c)
	if err != nil {
		return err
	}
	ctx, span := serverTracer.Start(c.Request().Context(), "TextsHandler.text")
	defer span.End()
	span.SetAttributes(attribute.String("ref", ref))
	t, err := h.client.Text(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// Commentaries
//
//	@Summary	Commentaries on a reference
//	@Tags		texts
//	@Security	BearerAuth
//	@Param		ref	path	string	true	"Reference"
//	@Produce	json
//	@Success	200	{object}	CommentariesResponse
//	@Failure	502	{object}	HTTPError
//	@Router		/api/commentaries/{ref} [get]
func (h *TextsHandler) commentaries(c echo.Context) error {
	ref, err := refParam(c)
	if err != nil {
		return err
	}
	ctx, span := serverTracer.Start(c.Request().Context(), "TextsHandler.commentaries")
	defer span.End()
	span.SetAttributes(attribute.String("ref", ref))
	refs, err := h.client.Commentaries(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return upstreamError(err)
	}
	if refs == nil {
		refs = []string{}
	}
	return c.JSON(http.StatusOK, CommentariesResponse{Reference: ref, Commentaries: refs})
}

// Parasha
//
//	@Summary	This week's Torah portion
//	@Tags		texts
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	sefaria.Parasha
//	@Failure	404	{object}	HTTPError
//	@Router		/api/parasha [get]
func (h *TextsHandler) parasha(c echo.Context) error {
	p, err := h.client.WeeklyParasha(c.Request().Context())
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// Package sefaria looks up texts, commentaries and the weekly reading from a
// Sefaria-compatible API.
package sefaria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/config"
	"github.com/mohammad-safakhou/itturia/internal/helpers"
)

var (
	ErrNotConfigured = errors.New("sefaria base url not configured")
	ErrNoText        = errors.New("no text for reference")
	ErrNoParasha     = errors.New("weekly parasha not found in calendar")
)

type Client struct {
	base   string
	http   *helpers.HTTPClient
	cache  *cache.Cache
	logger *zap.Logger
}

func New(cfg config.SefariaConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   helpers.NewHTTPClient(cfg.Timeout, cfg.Retries, 0),
		cache:  cache.New(1*time.Hour, 10*time.Minute),
		logger: logger,
	}, nil
}

// Text is the text of the first version returned for ref, tags removed.
type Text struct {
	Reference string `json:"reference"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language,omitempty"`
	Text      string `json:"text"`
}

type textsResponse struct {
	Ref      string `json:"ref"`
	Versions []struct {
		VersionTitle string          `json:"versionTitle"`
		Language     string          `json:"language"`
		Text         json.RawMessage `json:"text"`
	} `json:"versions"`
}

func (c *Client) Text(ctx context.Context, ref string) (Text, error) {
	key := "text:" + ref
	if v, ok := c.cache.Get(key); ok {
		return v.(Text), nil
	}
	var resp textsResponse
	if err := c.get(ctx, "api/v3/texts/"+url.PathEscape(ref), &resp); err != nil {
		return Text{}, err
	}
	if len(resp.Versions) == 0 {
		return Text{}, fmt.Errorf("%w: %s", ErrNoText, ref)
	}
	v := resp.Versions[0]
	lines := flatten(v.Text)
	for i, l := range lines {
		lines[i] = strings.TrimSpace(helpers.HTMLText(l))
	}
	t := Text{Reference: ref, Version: v.VersionTitle, Language: v.Language, Text: strings.Join(lines, "\n")}
	if resp.Ref != "" {
		t.Reference = resp.Ref
	}
	c.cache.SetDefault(key, t)
	return t, nil
}

// flatten walks the nested string arrays Sefaria uses for ranged texts.
func flatten(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil
	}
	var out []string
	for _, item := range arr {
		out = append(out, flatten(item)...)
	}
	return out
}

type relatedResponse struct {
	Links []struct {
		Type        string `json:"type"`
		SourceRef   string `json:"sourceRef"`
		SourceHeRef string `json:"sourceHeRef"`
	} `json:"links"`
}

// Commentaries returns the Hebrew references of commentary links on ref.
func (c *Client) Commentaries(ctx context.Context, ref string) ([]string, error) {
	key := "related:" + ref
	if v, ok := c.cache.Get(key); ok {
		return v.([]string), nil
	}
	var resp relatedResponse
	if err := c.get(ctx, "api/related/"+url.PathEscape(ref), &resp); err != nil {
		return nil, err
	}
	out := []string{}
	for _, l := range resp.Links {
		if l.Type != "commentary" {
			continue
		}
		name := l.SourceHeRef
		if name == "" {
			name = l.SourceRef
		}
		out = append(out, name)
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

// Parasha is the weekly Torah reading.
type Parasha struct {
	Ref         string `json:"ref"`
	NameHe      string `json:"nameHe"`
	Description string `json:"description,omitempty"`
}

type calendarResponse struct {
	CalendarItems []struct {
		Title struct {
			En string `json:"en"`
		} `json:"title"`
		Ref          string `json:"ref"`
		DisplayValue struct {
			He string `json:"he"`
		} `json:"displayValue"`
		Description struct {
			He string `json:"he"`
		} `json:"description"`
	} `json:"calendar_items"`
}

func (c *Client) WeeklyParasha(ctx context.Context) (Parasha, error) {
	var resp calendarResponse
	if err := c.get(ctx, "api/calendars", &resp); err != nil {
		return Parasha{}, err
	}
	for _, item := range resp.CalendarItems {
		if item.Title.En == "Parashat Hashavua" {
			return Parasha{Ref: item.Ref, NameHe: item.DisplayValue.He, Description: item.Description.He}, nil
		}
	}
	return Parasha{}, ErrNoParasha
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	err := c.http.DoJSON(ctx, http.MethodGet, c.base+"/"+path, nil, nil, out)
	if err != nil {
		c.logger.Warn("sefaria request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("sefaria %s: %w", path, err)
	}
	return nil
}

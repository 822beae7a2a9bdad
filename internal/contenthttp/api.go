package contenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/content"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/richtext"
)

// StoreProvider defines the interface for getting the active content store
type StoreProvider interface {
	Get() (*content.Store, bool)
}

// Recorder receives lookup outcomes, typically prometheus counters.
type Recorder interface {
	ObserveContentLookup(kind, outcome string)
	IncContentFallback(locale string)
}

// API implements the read-only content endpoints
type API struct {
	content  StoreProvider
	rich     *richtext.Renderer
	recorder Recorder
	logger   log.Logger
}

// NewAPI creates a new content API handler. recorder may be nil.
func NewAPI(content StoreProvider, recorder Recorder, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{
		content:  content,
		rich:     richtext.New(),
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterRoutes attaches content endpoints to the router
func (api *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/content", func(r chi.Router) {
		r.With(httpmw.Scope("content.locales")).Get("/locales", api.HandleLocales)
		r.With(httpmw.Scope("content.text")).Get("/{locale}/text/{key}", api.HandleText)
		r.With(httpmw.Scope("content.html")).Get("/{locale}/html/{key}", api.HandleHTML)
		r.With(httpmw.Scope("content.fragment")).Get("/{locale}/fragment/{key}", api.HandleFragment)
		tree := r.With(httpmw.Scope("content.tree"))
		tree.Get("/{locale}/tree", api.HandleTree)
		tree.Get("/{locale}/tree/{key}", api.HandleTree)
	})
}

// TextResponse is returned by the text and html endpoints
type TextResponse struct {
	Locale   string `json:"locale"`
	Key      string `json:"key"`
	Text     string `json:"text,omitempty"`
	HTML     string `json:"html,omitempty"`
	Fallback bool   `json:"fallback"`
}

// FragmentResponse is returned by the fragment endpoint
type FragmentResponse struct {
	Locale      string `json:"locale"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Fallback    bool   `json:"fallback"`
}

// TreeEntry describes one direct child of a namespace
type TreeEntry struct {
	Key   string `json:"key"`
	Shape string `json:"shape"`
}

// TreeResponse is returned by the tree endpoint
type TreeResponse struct {
	Locale   string      `json:"locale"`
	Key      string      `json:"key"`
	Entries  []TreeEntry `json:"entries"`
	Fallback bool        `json:"fallback"`
}

// LocalesResponse lists the configured locales
type LocalesResponse struct {
	Locales       []string       `json:"locales"`
	DefaultLocale string         `json:"default_locale"`
	Version       string         `json:"version"`
	ContentHash   string         `json:"content_hash"`
	Source        content.Source `json:"source"`
	LoadedAt      time.Time      `json:"loaded_at"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Key   string `json:"key,omitempty"`
	Shape string `json:"shape,omitempty"`
}

// HandleLocales serves the locale list and content identity
func (api *API) HandleLocales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := api.content.Get()
	if !ok {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, ErrorResponse{Error: "no content loaded", Code: "unavailable"})
		return
	}
	if api.notModified(w, r, s) {
		return
	}
	m := s.Meta()
	api.writeJSON(ctx, w, http.StatusOK, LocalesResponse{
		Locales:       s.Locales(),
		DefaultLocale: s.DefaultLocale(),
		Version:       m.Version,
		ContentHash:   m.SHA256,
		Source:        m.Source,
		LoadedAt:      m.LoadedAt.Truncate(time.Second),
	})
}

// HandleText serves a scalar as plain text
func (api *API) HandleText(w http.ResponseWriter, r *http.Request) {
	res, ok := api.lookup(w, r, "text", content.ShapeScalar)
	if !ok {
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, TextResponse{
		Locale:   res.Locale,
		Key:      res.Path.String(),
		Text:     string(res.Node.(content.Scalar)),
		Fallback: res.Fallback,
	})
}

// HandleHTML serves a scalar rendered from markdown
func (api *API) HandleHTML(w http.ResponseWriter, r *http.Request) {
	res, ok := api.lookup(w, r, "html", content.ShapeScalar)
	if !ok {
		return
	}
	out, err := api.rich.Block(string(res.Node.(content.Scalar)))
	if err != nil {
		log.FromContext(r.Context()).Error(r.Context(), err, "render markdown", "key", res.Path.String())
		api.writeJSON(r.Context(), w, http.StatusInternalServerError, ErrorResponse{Error: "render failed", Code: "internal"})
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, TextResponse{
		Locale:   res.Locale,
		Key:      res.Path.String(),
		HTML:     string(out),
		Fallback: res.Fallback,
	})
}

// HandleFragment serves a title/description pair
func (api *API) HandleFragment(w http.ResponseWriter, r *http.Request) {
	res, ok := api.lookup(w, r, "fragment", content.ShapeFragment)
	if !ok {
		return
	}
	f := res.Node.(content.Fragment)
	api.writeJSON(r.Context(), w, http.StatusOK, FragmentResponse{
		Locale:      res.Locale,
		Key:         res.Path.String(),
		Title:       f.Title,
		Description: f.Description,
		Fallback:    res.Fallback,
	})
}

// HandleTree lists the direct children of a namespace
func (api *API) HandleTree(w http.ResponseWriter, r *http.Request) {
	res, ok := api.lookup(w, r, "tree", content.ShapeTree)
	if !ok {
		return
	}
	t := res.Node.(*content.Tree)
	entries := make([]TreeEntry, 0, t.Len())
	for _, k := range t.Keys() {
		n, _ := t.Child(k)
		entries = append(entries, TreeEntry{Key: k, Shape: n.Shape().String()})
	}
	api.writeJSON(r.Context(), w, http.StatusOK, TreeResponse{
		Locale:   res.Locale,
		Key:      res.Path.String(),
		Entries:  entries,
		Fallback: res.Fallback,
	})
}

// lookup resolves the request's locale and key. On failure it writes the
// error response and returns false.
func (api *API) lookup(w http.ResponseWriter, r *http.Request, kind string, want content.Shape) (content.Result, bool) {
	ctx := r.Context()
	s, ok := api.content.Get()
	if !ok {
		api.record(kind, "unavailable")
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, ErrorResponse{Error: "no content loaded", Code: "unavailable"})
		return content.Result{}, false
	}

	locale := chi.URLParam(r, "locale")
	key := chi.URLParam(r, "key")
	ctx = log.With(ctx, "locale", locale, "key", key)

	res, err := content.NewAccessor(s).Lookup(locale, key, want)
	if err != nil {
		status, body := errorResponse(err, key)
		api.record(kind, body.Code)
		log.FromContext(ctx).Debug(ctx, "content lookup failed", "kind", kind, "code", body.Code)
		api.writeJSON(ctx, w, status, body)
		return content.Result{}, false
	}

	// the store is immutable, so its hash validates every response built
	// from it. Only successful lookups are validated; errors always carry a body.
	w.Header().Set("Content-Language", res.Locale)
	if api.notModified(w, r, s) {
		api.record(kind, "not_modified")
		return content.Result{}, false
	}

	outcome := "ok"
	if res.Fallback {
		outcome = "fallback"
		if api.recorder != nil {
			api.recorder.IncContentFallback(res.Locale)
		}
		log.FromContext(ctx).Info(ctx, "content served from default locale", "served_locale", res.Locale)
	}
	api.record(kind, outcome)
	return res, true
}

// notModified sets the ETag for s and answers 304 when the client already
// holds it.
func (api *API) notModified(w http.ResponseWriter, r *http.Request, s *content.Store) bool {
	sum := s.ContentHash()
	if sum == "" {
		return false
	}
	etag := `"` + cryptoutil.ShortHash(sum, 32) + `"`
	w.Header().Set("ETag", etag)
	if cryptoutil.MatchETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func (api *API) record(kind, outcome string) {
	if api.recorder != nil {
		api.recorder.ObserveContentLookup(kind, outcome)
	}
}

func errorResponse(err error, key string) (int, ErrorResponse) {
	var se *content.ShapeError
	switch {
	case errors.Is(err, content.ErrInvalidLocale):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_locale", Key: key}
	case errors.Is(err, content.ErrInvalidPath):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_key", Key: key}
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found", Key: key}
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "not_renderable", Key: key, Shape: se.Got.String()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal", Key: key}
	}
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

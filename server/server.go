// CLAUDE:SUMMARY chi HTTP API: convert envelopes or fetched documents, read back stored conversions as JSON, Markdown or HTML.
// Package server exposes the conversion pipeline over HTTP.
//
// Routes:
//
//	GET    /healthz
//	POST   /v1/convert?format=markdown|html|json&page_url=...   body: envelope, EJS or encoded payload
//	POST   /v1/fetch?format=...                                 body: {"url": "<document url>"}
//	GET    /v1/conversions                                      (store only)
//	GET    /v1/conversions/{id}                                 (store only)
//	GET    /v1/conversions/{id}/markdown                        (store only)
//	GET    /v1/conversions/{id}/html                            (store only)
//	DELETE /v1/conversions/{id}                                 (store only)
//	GET    /v1/audit?operation=&status=&limit=                  (audit log only)
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/ultradoc/docpipe"
	"github.com/hazyhaar/ultradoc/horosafe"
	"github.com/hazyhaar/ultradoc/idgen"
	"github.com/hazyhaar/ultradoc/kit"
	"github.com/hazyhaar/ultradoc/opendoc"
	"github.com/hazyhaar/ultradoc/render"
	"github.com/hazyhaar/ultradoc/store"
	"github.com/hazyhaar/ultradoc/ultrabuf"
)

// Config configures a Server.
type Config struct {
	// MaxBody caps request bodies (default: 64 MB).
	MaxBody int64
	// BasicAuthUser enables Basic Auth on /v1 when set, checked against
	// the bcrypt hash BasicAuthHash.
	BasicAuthUser string
	BasicAuthHash string
	// FetchTimeout bounds POST /v1/fetch (default: 90s).
	FetchTimeout time.Duration
	// Audit records convert, fetch and delete operations when set.
	Audit  *store.AuditLog
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxBody <= 0 {
		c.MaxBody = 64 << 20
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 90 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server serves the HTTP API. Store and Fetcher are optional: without a
// store nothing is persisted and the /v1/conversions routes are absent;
// without a fetcher /v1/fetch is absent.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	pipe    *docpipe.Pipeline
	store   *store.Store
	fetcher opendoc.Fetcher
	router  chi.Router

	convert kit.Endpoint
	fetch   kit.Endpoint
	remove  kit.Endpoint
}

// New builds the router.
func New(pipe *docpipe.Pipeline, st *store.Store, fetcher opendoc.Fetcher, cfg Config) *Server {
	cfg.defaults()
	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		pipe:    pipe,
		store:   st,
		fetcher: fetcher,
	}
	s.convert = kit.Chain(kit.Recovery(s.logger), kit.Logging(s.logger, "convert"), s.audited("convert"))(s.convertEndpoint)
	s.fetch = kit.Chain(kit.Recovery(s.logger), kit.Logging(s.logger, "fetch"), s.audited("fetch"), kit.Timeout(cfg.FetchTimeout))(s.fetchEndpoint)
	s.remove = kit.Chain(kit.Recovery(s.logger), kit.Logging(s.logger, "delete"), s.audited("delete"))(s.deleteEndpoint)
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Use(requestContext(s.logger))
	r.Use(maxBody(s.cfg.MaxBody))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.BasicAuthUser != "" {
			r.Use(basicAuth(s.cfg.BasicAuthUser, []byte(s.cfg.BasicAuthHash)))
		}
		r.Post("/convert", s.handleConvert)
		if s.fetcher != nil {
			r.Post("/fetch", s.handleFetch)
		}
		if s.store != nil {
			r.Route("/conversions", func(r chi.Router) {
				r.Get("/", s.handleList)
				r.Get("/{id}", s.handleGet)
				r.Get("/{id}/markdown", s.handleMarkdown)
				r.Get("/{id}/html", s.handleHTML)
				r.Delete("/{id}", s.handleDelete)
			})
		}
		if s.cfg.Audit != nil {
			r.Get("/audit", s.handleAudit)
		}
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// --- endpoints ---

type convertRequest struct {
	data   []byte
	source string
	opts   render.Options
}

type fetchRequest struct {
	url string
}

// result is what convert and fetch hand back to the HTTP layer.
type result struct {
	id   string
	conv *docpipe.Conversion
}

func (s *Server) convertEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*convertRequest)
	conv, err := s.pipe.ConvertAuto(ctx, r.data, r.source)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, conv, r.opts)
}

func (s *Server) fetchEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*fetchRequest)
	resp, err := s.fetcher.Fetch(ctx, r.url)
	if err != nil {
		return nil, err
	}
	envelope, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	conv, err := s.pipe.Convert(ctx, envelope, r.url)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, conv, render.Options{PageURL: r.url})
}

func (s *Server) deleteEndpoint(ctx context.Context, req any) (any, error) {
	id := req.(string)
	return id, s.store.Delete(ctx, id)
}

// audited records each call of the wrapped endpoint in the audit log.
func (s *Server) audited(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		if s.cfg.Audit == nil {
			return next
		}
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			e := &store.AuditEntry{
				Operation:  op,
				UserID:     kit.GetUserID(ctx),
				RequestID:  kit.GetRequestID(ctx),
				RemoteAddr: kit.GetRemoteAddr(ctx),
				DurationMs: time.Since(start).Milliseconds(),
			}
			switch r := req.(type) {
			case *convertRequest:
				e.Subject = r.source
			case *fetchRequest:
				e.Subject = r.url
			case string:
				e.ConversionID = r
			}
			if res, ok := resp.(*result); ok && res != nil {
				e.ConversionID = res.id
			}
			if err != nil {
				e.Error = err.Error()
			}
			s.cfg.Audit.LogAsync(e)
			return resp, err
		}
	}
}

func (s *Server) persist(ctx context.Context, conv *docpipe.Conversion, opts render.Options) (*result, error) {
	if s.store == nil {
		return &result{conv: conv}, nil
	}
	rec := &store.Record{
		PayloadHash: conv.PayloadHash,
		Source:      conv.Source,
		Document:    conv.Document,
		Markdown:    render.Markdown(conv.Document, opts),
		Stats:       conv.Stats,
		Quality:     conv.Quality,
	}
	created, err := s.store.Put(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "conversion stored", "id", rec.ID, "created", created, "request_id", kit.GetRequestID(ctx))
	return &result{id: rec.ID, conv: conv}, nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty body"})
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "http"
	}
	pageURL := r.URL.Query().Get("page_url")

	resp, err := s.convert(r.Context(), &convertRequest{
		data:   data,
		source: source,
		opts:   render.Options{PageURL: pageURL},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, resp.(*result), format, render.Options{PageURL: pageURL})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}
	resp, err := s.fetch(r.Context(), &fetchRequest{url: body.URL})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResult(w, r, resp.(*result), format, render.Options{PageURL: body.URL})
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res *result, format render.Format, opts render.Options) {
	h := w.Header()
	h.Set("X-Payload-Hash", res.conv.PayloadHash)
	if res.id != "" {
		h.Set("X-Conversion-ID", res.id)
	}
	if format == render.FormatJSON {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":             res.id,
			"payload_hash":   res.conv.PayloadHash,
			"stats":          res.conv.Stats,
			"buffer_quality": res.conv.Quality,
			"document":       res.conv.Document,
		})
		return
	}
	var buf bytes.Buffer
	if err := render.Write(&buf, res.conv.Document, format, opts); err != nil {
		s.writeError(w, r, err)
		return
	}
	h.Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "conversions": list})
}

// record loads the conversion named by the {id} path parameter.
func (s *Server) record(r *http.Request) (*store.Record, error) {
	id, err := idgen.ParseConversion(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return s.store.Get(r.Context(), id)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", render.FormatMarkdown.ContentType())
	io.WriteString(w, rec.Markdown)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := render.HTML(rec.Document, render.Options{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", render.FormatHTML.ContentType())
	io.WriteString(w, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idgen.ParseConversion(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.remove(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := s.cfg.Audit.Query(r.Context(), store.AuditFilter{
		Operation: q.Get("operation"),
		Status:    q.Get("status"),
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

// --- responses ---

var errBadRequest = errors.New("bad request")

// statusOf maps pipeline, fetch and store errors to HTTP status codes.
func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, docpipe.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, ultrabuf.ErrMissingPayload),
		errors.Is(err, ultrabuf.ErrInvalidBase64),
		errors.Is(err, opendoc.ErrNotEJS),
		errors.Is(err, opendoc.ErrBadURL),
		errors.Is(err, render.ErrUnknownFormat),
		errors.Is(err, idgen.ErrBadID),
		errors.Is(err, horosafe.ErrSSRF),
		errors.Is(err, horosafe.ErrUnsafeScheme):
		return http.StatusBadRequest
	case errors.Is(err, opendoc.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", kit.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"status", code,
			"error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/ci-breakage-dashboard/pkg/config"
	"github.com/your-org/ci-breakage-dashboard/pkg/export"
	"github.com/your-org/ci-breakage-dashboard/pkg/generator"
	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/metrics"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
)

// Server serves the live dashboard
type Server struct {
	config    *config.Config
	generator *generator.Generator
	renderer  *renderer.Renderer
	router    *mux.Router
}

// NewServer creates a new dashboard server
func NewServer(cfg *config.Config, gen *generator.Generator, r *renderer.Renderer) (*Server, error) {
	s := &Server{
		config:    cfg,
		generator: gen,
		renderer:  r,
		router:    mux.NewRouter(),
	}
	if cfg.MetricsEnabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server running at http://%s", addr)
		logger.Infof("Press Ctrl+C to stop")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware, accessLogMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	images := http.FileServer(http.Dir(filepath.Join(s.config.AssetsDir, "images")))
	s.router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", images))

	// Pages
	s.router.HandleFunc("/", s.pageHandler(renderer.PageIndex)).Methods(http.MethodGet)
	s.router.HandleFunc("/index.html", s.pageHandler(renderer.PageIndex)).Methods(http.MethodGet)
	s.router.HandleFunc("/code-breakages.html", s.pageHandler(renderer.PageCodeBreakages)).Methods(http.MethodGet)
	s.router.HandleFunc("/pattern-details.html", s.pageHandler(renderer.PagePatternDetails)).Methods(http.MethodGet)

	// JSON and YAML views for re-rendering panels
	s.router.HandleFunc("/view/{page}", s.handleView).Methods(http.MethodGet)

	// Edits
	edits := s.router.PathPrefix(generator.EditBase).Subrouter()
	edits.HandleFunc("/{id:[0-9]+}/{kind:mode|description|delete}", s.handleEdit).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"panels": s.generator.Panels(),
	})
}

// buildPage loads a page and applies any sort requested in the query
func (s *Server) buildPage(r *http.Request, kind renderer.PageKind) (*renderer.Page, error) {
	page, err := s.generator.Page(r.Context(), kind, r.URL.Query().Get("pattern_id"))
	if err != nil {
		return nil, err
	}
	if kind == renderer.PageCodeBreakages {
		if msg := r.URL.Query().Get(editErrorParam); msg != "" {
			page.Notices = append([]renderer.Notice{{
				Level:   renderer.NoticeError,
				Panel:   generator.PanelEdits,
				Message: msg,
			}}, page.Notices...)
		}
	}
	applySort(page, r)
	return page, nil
}

func (s *Server) pageHandler(kind renderer.PageKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := s.buildPage(r, kind)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writePage(w, http.StatusOK, page)
	}
}

func (s *Server) writePage(w http.ResponseWriter, status int, page *renderer.Page) {
	var buf strings.Builder
	if err := s.renderer.Render(&buf, page); err != nil {
		logger.Errorf("Failed to render %s: %v", page.Kind, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	kind := renderer.PageKind(mux.Vars(r)["page"])

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil || format == export.FormatTable {
		format = export.FormatJSON
	}

	page, err := s.buildPage(r, kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeView(w, http.StatusOK, format, page)
}

func (s *Server) writeView(w http.ResponseWriter, status int, format export.Format, page *renderer.Page) {
	var buf strings.Builder
	if err := export.NewExporter(format).Export(&buf, page); err != nil {
		logger.Errorf("Failed to export %s: %v", page.Kind, err)
		http.Error(w, "failed to encode view", http.StatusInternalServerError)
		return
	}
	contentType := "application/json"
	if format == export.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	causeID, err := models.ParseID(vars["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	edit := generator.Edit{Kind: generator.EditKind(vars["kind"]), CauseID: causeID}
	switch edit.Kind {
	case generator.EditModeChange:
		mode, err := models.ParseID(r.PostForm.Get("mode"))
		if err != nil {
			http.Error(w, "mode: "+err.Error(), http.StatusBadRequest)
			return
		}
		edit.Mode = mode
	case generator.EditDescription:
		edit.Description = r.PostForm.Get("description")
	case generator.EditDelete:
		edit.Confirmed = r.PostForm.Get("confirm") == "yes"
	}

	if wantsJSON(r) {
		page := s.generator.ApplyEdit(r.Context(), edit)
		s.writeView(w, http.StatusOK, export.FormatJSON, page)
		return
	}

	// Browsers get redirected back to the page so its relative links
	// resolve against the page, not the edit path
	target := "/" + renderer.PageCodeBreakages.FileName("")
	if err := s.generator.Submit(r.Context(), edit); err != nil {
		target += "?" + url.Values{editErrorParam: {generator.EditNotice(err).Message}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// editErrorParam carries a failed edit's message across the redirect
const editErrorParam = "edit_error"

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// applySort orders one table by ?table=&sort=[&desc=1]. A bad column leaves
// the order alone and warns
func applySort(page *renderer.Page, r *http.Request) {
	q := r.URL.Query()
	tableID, key := q.Get("table"), q.Get("sort")
	if tableID == "" || key == "" {
		return
	}
	t, ok := page.Table(tableID)
	if !ok {
		return
	}
	desc := q.Get("desc") == "1"
	if err := t.SortBy(key, desc); err != nil {
		page.AddNotice(renderer.Notice{Level: renderer.NoticeWarning, Panel: t.Title, Message: err.Error()})
		return
	}
	page.Sort = &renderer.SortState{Table: tableID, Key: key, Desc: desc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}

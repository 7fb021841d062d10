package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"RiskMonitor/internal/domain"
	"RiskMonitor/internal/metrics"
	"RiskMonitor/internal/usecase"
)

// Dashboard is the controller behind the page and the view API.
type Dashboard interface {
	ViewModel() usecase.ViewModel
	OnFilterChange(filter domain.FilterState) <-chan struct{}
}

// StatusSource provides the status widget snapshot.
type StatusSource interface {
	Snapshot() domain.StatusSnapshot
}

// RunTrigger submits run-now requests.
type RunTrigger interface {
	RequestRunNow(ctx context.Context) bool
}

// Deps wires the HTTP surface.
type Deps struct {
	Dashboard Dashboard
	Status    StatusSource
	Run       RunTrigger
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// FetchWait bounds how long a filter submission waits for its fetch.
	FetchWait time.Duration
	// Location renders timestamps; nil means UTC.
	Location *time.Location
}

// Server serves the dashboard page, its JSON API and operational endpoints.
type Server struct {
	dashboard Dashboard
	status    StatusSource
	run       RunTrigger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	fetchWait time.Duration
	location  *time.Location

	boundary *Boundary
	pages    *template.Template
	router   chi.Router
}

var errRender = errors.New("template execution failed")

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		dashboard: deps.Dashboard,
		status:    deps.Status,
		run:       deps.Run,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		fetchWait: deps.FetchWait,
		location:  loc,
		boundary:  NewBoundary(deps.Logger, deps.Metrics),
		pages:     pages,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Boundary exposes the fault containment state of the page tree.
func (s *Server) Boundary() *Boundary {
	return s.boundary
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", s.handleViewJSON)
		r.Get("/status", s.handleStatusJSON)
		r.Put("/filter", s.handleFilterJSON)
		r.Post("/run", s.handleRunJSON)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.boundary.Wrap)
		r.Get("/", s.handlePage)
		r.Post("/filter", s.handleFilterForm)
		r.Post("/run", s.handleRunForm)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"boundary": string(s.boundary.State()),
	})
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	vm := s.dashboard.ViewModel()
	data := pageData{
		Display:       string(vm.Display),
		Loading:       vm.Loading,
		Error:         vm.Error,
		Total:         vm.Total,
		HighRiskCount: vm.HighRiskCount,
		MinRisk:       int(vm.Filter.MinRisk),
		SortOrder:     string(vm.Filter.SortOrder),
		Start:         domain.FormatDate(vm.Filter.DateRange.Start),
		End:           domain.FormatDate(vm.Filter.DateRange.End),
		Status:        newStatusView(s.status.Snapshot(), s.location),
		Cards:         make([]cardView, 0, len(vm.Records)),
	}
	for _, rec := range vm.Records {
		data.Cards = append(data.Cards, newCardView(rec, s.location))
	}
	s.render(w, "dashboard.html", data)
}

// render panics on template failure so the boundary contains it.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		panic(fmt.Errorf("%w: %s: %v", errRender, name, err))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleFilterForm(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyFilter(r.Context(), filter)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRunForm(w http.ResponseWriter, r *http.Request) {
	s.run.RequestRunNow(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleViewJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.ViewModel())
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

// filterRequest is the JSON body of PUT /api/filter; dates are YYYY-MM-DD.
type filterRequest struct {
	MinRisk   int    `json:"minRisk"`
	SortOrder string `json:"sortOrder"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

func (s *Server) handleFilterJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8*1024)

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sortOrder, dates, err := parseOrderAndDates(req.SortOrder, req.Start, req.End)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := domain.FilterState{MinRisk: domain.MinRisk(req.MinRisk), SortOrder: sortOrder, DateRange: dates}
	if err := filter.Validate(); err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyFilter(r.Context(), filter)
	writeJSON(w, http.StatusOK, s.dashboard.ViewModel())
}

func (s *Server) handleRunJSON(w http.ResponseWriter, r *http.Request) {
	if s.run.RequestRunNow(r.Context()) {
		writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
		return
	}
	writeJSON(w, http.StatusConflict, map[string]bool{"accepted": false})
}

// applyFilter issues the fetch and waits up to fetchWait for it to resolve.
func (s *Server) applyFilter(ctx context.Context, filter domain.FilterState) {
	done := s.dashboard.OnFilterChange(filter)
	if s.fetchWait <= 0 {
		return
	}
	timer := time.NewTimer(s.fetchWait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func parseFilterForm(r *http.Request) (domain.FilterState, error) {
	if err := r.ParseForm(); err != nil {
		return domain.FilterState{}, fmt.Errorf("parse form: %w", err)
	}
	return buildFilter(r.PostForm.Get("minRisk"), r.PostForm.Get("sort"), r.PostForm.Get("start"), r.PostForm.Get("end"))
}

func buildFilter(minRisk, sortOrder, start, end string) (domain.FilterState, error) {
	risk, err := domain.ParseMinRisk(minRisk)
	if err != nil {
		return domain.FilterState{}, err
	}
	order, dates, err := parseOrderAndDates(sortOrder, start, end)
	if err != nil {
		return domain.FilterState{}, err
	}
	return domain.FilterState{MinRisk: risk, SortOrder: order, DateRange: dates}, nil
}

func parseOrderAndDates(sortOrder, start, end string) (domain.SortOrder, domain.DateRange, error) {
	var dates domain.DateRange
	order, err := domain.ParseSortOrder(sortOrder)
	if err != nil {
		return "", dates, err
	}
	if dates.Start, err = domain.ParseDate(start); err != nil {
		return "", dates, err
	}
	if dates.End, err = domain.ParseDate(end); err != nil {
		return "", dates, err
	}
	return order, dates, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(started),
					"request_id", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lherron/daybook/internal/config"
	"github.com/lherron/daybook/internal/db"
	"github.com/lherron/daybook/internal/domain"
	"github.com/lherron/daybook/internal/store"
)

// DaemonOptions configures the daybookd daemon.
type DaemonOptions struct {
	Addr   string
	Unix   string
	Token  string
	DBPath string
}

// ServeDaemon starts the daybookd daemon.
func ServeDaemon(opts DaemonOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Token == "" {
		opts.Token = cfg.DaemonToken
	}
	if opts.Addr == "" {
		opts.Addr = cfg.DaemonAddr
	}

	logger := cfg.NewLogger(os.Stderr)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.RequiresMigrationError(); err != nil {
		return err
	}

	server := newDaemonServer(store.New(database).WithLogger(logger), cfg, opts.Token, logger)

	httpServer := &http.Server{
		Handler:      server.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if opts.Unix != "" {
		_ = os.Remove(opts.Unix)
		listener, err := net.Listen("unix", opts.Unix)
		if err != nil {
			return fmt.Errorf("failed to listen on unix socket: %w", err)
		}
		defer listener.Close()
		logger.Info("daybookd listening", "unix", opts.Unix, "db", cfg.DBPath)
		return httpServer.Serve(listener)
	}

	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:7411"
	}
	httpServer.Addr = addr
	logger.Info("daybookd listening", "addr", addr, "db", cfg.DBPath)

	return httpServer.ListenAndServe()
}

type daemonServer struct {
	store  *store.Store
	cfg    *config.Config
	token  string
	logger *slog.Logger
}

func newDaemonServer(s *store.Store, cfg *config.Config, token string, logger *slog.Logger) *daemonServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &daemonServer{store: s, cfg: cfg, token: token, logger: logger}
}

func (s *daemonServer) handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.withLogging(mux)
}

func (s *daemonServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/health", s.withAuth(s.handleHealth))

	mux.HandleFunc("/v1/routines/list", s.withAuth(s.handleRoutinesList))
	mux.HandleFunc("/v1/routines/create", s.withAuth(s.handleRoutinesCreate))
	mux.HandleFunc("/v1/routines/update", s.withAuth(s.handleRoutinesUpdate))
	mux.HandleFunc("/v1/routines/delete", s.withAuth(s.handleRoutinesDelete))

	mux.HandleFunc("/v1/items/list", s.withAuth(s.handleItemsList))
	mux.HandleFunc("/v1/items/create", s.withAuth(s.handleItemsCreate))
	mux.HandleFunc("/v1/items/update", s.withAuth(s.handleItemsUpdate))
	mux.HandleFunc("/v1/items/delete", s.withAuth(s.handleItemsDelete))

	mux.HandleFunc("/v1/days/list", s.withAuth(s.handleDaysList))
	mux.HandleFunc("/v1/days/get", s.withAuth(s.handleDaysGet))
	mux.HandleFunc("/v1/days/upsert", s.withAuth(s.handleDaysUpsert))
	mux.HandleFunc("/v1/days/delete", s.withAuth(s.handleDaysDelete))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *daemonServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *daemonServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			token := r.Header.Get("Authorization")
			if strings.HasPrefix(token, "Bearer ") {
				token = strings.TrimPrefix(token, "Bearer ")
			}
			if token == "" {
				token = r.Header.Get("X-Daybookd-Token")
			}
			if token != s.token {
				s.writeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
				return
			}
		}

		next(w, r)
	}
}

func (s *daemonServer) decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (s *daemonServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *daemonServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]interface{}{
		"message": err.Error(),
	})
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *daemonServer) writeStoreError(w http.ResponseWriter, err error) {
	var etagErr *domain.ETagMismatchError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.As(err, &etagErr), errors.Is(err, domain.ErrDuplicateName):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

// post decodes a POST body into req and resolves the acting user.
// It writes the error response itself and returns ok=false on failure.
func (s *daemonServer) post(w http.ResponseWriter, r *http.Request, req interface{}) (string, bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return "", false
	}
	if err := s.decodeJSON(r, req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return "", false
	}
	userUUID, err := s.resolveUserUUID(r.Context(), r)
	if err != nil {
		s.writeStoreError(w, err)
		return "", false
	}
	return userUUID, true
}

func (s *daemonServer) resolveUserUUID(ctx context.Context, r *http.Request) (string, error) {
	ref := r.Header.Get("X-Daybook-User")
	if ref == "" {
		ref = s.cfg.DefaultUser
	}
	if ref == "" {
		return "", domain.Invalidf("invalid user: set the X-Daybook-User header")
	}
	user, err := s.store.Users.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	return user.UUID, nil
}

func (s *daemonServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": Version,
	})
}

// Routines

type routinesListRequest struct {
	IncludeInactive bool `json:"include_inactive"`
}

type routinesCreateRequest struct {
	Name string `json:"name"`
}

type routinesUpdateRequest struct {
	Routine string  `json:"routine"`
	Name    *string `json:"name,omitempty"`
	Active  *bool   `json:"active,omitempty"`
	IfMatch int64   `json:"if_match,omitempty"`
}

type routinesDeleteRequest struct {
	Routine string `json:"routine"`
	IfMatch int64  `json:"if_match,omitempty"`
}

func (s *daemonServer) handleRoutinesList(w http.ResponseWriter, r *http.Request) {
	var req routinesListRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	routines, err := s.store.Routines.List(r.Context(), userUUID, req.IncludeInactive)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if routines == nil {
		routines = []domain.Routine{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"routines": routines})
}

func (s *daemonServer) handleRoutinesCreate(w http.ResponseWriter, r *http.Request) {
	var req routinesCreateRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	routine, err := s.store.Routines.Create(r.Context(), userUUID, req.Name)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, routine)
}

func (s *daemonServer) handleRoutinesUpdate(w http.ResponseWriter, r *http.Request) {
	var req routinesUpdateRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	if req.Name == nil && req.Active == nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("no fields to update"))
		return
	}
	routine, err := s.store.Routines.Resolve(r.Context(), userUUID, req.Routine)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	updated, err := s.store.Routines.Update(r.Context(), userUUID, routine.UUID, store.RoutineUpdateParams{
		Name:   req.Name,
		Active: req.Active,
	}, req.IfMatch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *daemonServer) handleRoutinesDelete(w http.ResponseWriter, r *http.Request) {
	var req routinesDeleteRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	routine, err := s.store.Routines.Resolve(r.Context(), userUUID, req.Routine)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.Routines.Delete(r.Context(), userUUID, routine.UUID, req.IfMatch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": routine.UUID})
}

// Items

type itemsListRequest struct {
	Routine         string `json:"routine"`
	IncludeInactive bool   `json:"include_inactive"`
}

type itemsCreateRequest struct {
	Routine     string  `json:"routine"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Inactive    bool    `json:"inactive,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
}

type itemsUpdateRequest struct {
	Item        string  `json:"item"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	Routine     *string `json:"routine,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	ToEnd       bool    `json:"to_end,omitempty"`
	IfMatch     int64   `json:"if_match,omitempty"`
}

type itemsDeleteRequest struct {
	Item    string `json:"item"`
	IfMatch int64  `json:"if_match,omitempty"`
}

func (s *daemonServer) handleItemsList(w http.ResponseWriter, r *http.Request) {
	var req itemsListRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	routine, err := s.store.Routines.Resolve(r.Context(), userUUID, req.Routine)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	items, err := s.store.Items.List(r.Context(), userUUID, routine.UUID, store.ItemListOptions{IncludeInactive: req.IncludeInactive})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []domain.RoutineItem{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"routine": routine, "items": items})
}

func (s *daemonServer) handleItemsCreate(w http.ResponseWriter, r *http.Request) {
	var req itemsCreateRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	routine, err := s.store.Routines.Resolve(r.Context(), userUUID, req.Routine)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	item, err := s.store.Items.Create(r.Context(), userUUID, store.ItemCreateParams{
		RoutineUUID: routine.UUID,
		Title:       req.Title,
		Description: req.Description,
		Inactive:    req.Inactive,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *daemonServer) handleItemsUpdate(w http.ResponseWriter, r *http.Request) {
	var req itemsUpdateRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	item, err := s.store.Items.Resolve(r.Context(), userUUID, req.Item)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	params := store.ItemUpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Active:      req.Active,
		Priority:    req.Priority,
		ToEnd:       req.ToEnd,
	}
	if req.Routine != nil {
		routine, err := s.store.Routines.Resolve(r.Context(), userUUID, *req.Routine)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		params.RoutineUUID = &routine.UUID
	}
	if params.Title == nil && params.Description == nil && params.Active == nil &&
		params.RoutineUUID == nil && params.Priority == nil && !params.ToEnd {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("no fields to update"))
		return
	}

	updated, err := s.store.Items.Update(r.Context(), userUUID, item.UUID, params, req.IfMatch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *daemonServer) handleItemsDelete(w http.ResponseWriter, r *http.Request) {
	var req itemsDeleteRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	item, err := s.store.Items.Resolve(r.Context(), userUUID, req.Item)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.Items.Delete(r.Context(), userUUID, item.UUID, req.IfMatch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": item.UUID})
}

// Day pages

type daysListRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Rating *int   `json:"rating,omitempty"`
	Emoji  string `json:"emoji,omitempty"`
	Query  string `json:"query,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

type daysGetRequest struct {
	Date string `json:"date"`
}

type daysUpsertRequest struct {
	Date           string  `json:"date"`
	Event          *string `json:"event,omitempty"`
	WakeUpTime     *string `json:"wake_up_time,omitempty"`
	SleepTime      *string `json:"sleep_time,omitempty"`
	Quote          *string `json:"quote,omitempty"`
	LessonOfDay    *string `json:"lesson_of_day,omitempty"`
	Positives      *string `json:"positives,omitempty"`
	Negatives      *string `json:"negatives,omitempty"`
	NotesTomorrow  *string `json:"notes_tomorrow,omitempty"`
	FinancialNotes *string `json:"financial_notes,omitempty"`
	Rating         *int    `json:"rating,omitempty"`
	ClearRating    bool    `json:"clear_rating,omitempty"`
	Emoji          *string `json:"emoji,omitempty"`
	IfMatch        int64   `json:"if_match,omitempty"`
}

type daysDeleteRequest struct {
	Date    string `json:"date"`
	IfMatch int64  `json:"if_match,omitempty"`
}

func (s *daemonServer) handleDaysList(w http.ResponseWriter, r *http.Request) {
	var req daysListRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	for _, d := range []string{req.From, req.To} {
		if d == "" {
			continue
		}
		if err := domain.ValidateDate(d); err != nil {
			s.writeStoreError(w, err)
			return
		}
	}
	list, err := s.store.DayPages.Page(r.Context(), userUUID, store.DayPageFilter{
		From:   req.From,
		To:     req.To,
		Rating: req.Rating,
		Emoji:  req.Emoji,
		Query:  req.Query,
		Limit:  req.Limit,
		Cursor: req.Cursor,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *daemonServer) handleDaysGet(w http.ResponseWriter, r *http.Request) {
	var req daysGetRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	if err := domain.ValidateDate(req.Date); err != nil {
		s.writeStoreError(w, err)
		return
	}
	page, err := s.store.DayPages.Get(r.Context(), userUUID, req.Date)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *daemonServer) handleDaysUpsert(w http.ResponseWriter, r *http.Request) {
	var req daysUpsertRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	page, created, err := s.store.DayPages.Upsert(r.Context(), userUUID, req.Date, store.DayPageFields{
		Event:          req.Event,
		WakeUpTime:     req.WakeUpTime,
		SleepTime:      req.SleepTime,
		Quote:          req.Quote,
		LessonOfDay:    req.LessonOfDay,
		Positives:      req.Positives,
		Negatives:      req.Negatives,
		NotesTomorrow:  req.NotesTomorrow,
		FinancialNotes: req.FinancialNotes,
		Rating:         req.Rating,
		ClearRating:    req.ClearRating,
		Emoji:          req.Emoji,
	}, req.IfMatch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, page)
}

func (s *daemonServer) handleDaysDelete(w http.ResponseWriter, r *http.Request) {
	var req daysDeleteRequest
	userUUID, ok := s.post(w, r, &req)
	if !ok {
		return
	}
	if err := domain.ValidateDate(req.Date); err != nil {
		s.writeStoreError(w, err)
		return
	}
	if err := s.store.DayPages.Delete(r.Context(), userUUID, req.Date, req.IfMatch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": req.Date})
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"podcastflow/internal/api"
	"podcastflow/internal/auth"
	"podcastflow/internal/blob"
	"podcastflow/internal/logging"
	"podcastflow/internal/realtime"
	"podcastflow/internal/services"
)

const (
	maxJSONBody     = 1 << 20
	multipartMemory = 32 << 20
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	projects *api.ProjectService
	auth     *auth.Authenticator
	realtime *realtime.Server
	maxBody  int64

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if d == nil {
		return nil, errors.New("api server requires a daemon")
	}
	parts := d.parts
	authenticator := parts.Auth
	if authenticator == nil {
		var err error
		authenticator, err = auth.New(d.cfg.Auth)
		if err != nil {
			return nil, err
		}
	}

	var uploads api.Uploader
	maxBody := d.cfg.MaxFileSizeBytes()
	if parts.Blobs != nil {
		uploads = parts.Blobs
		maxBody = parts.Blobs.MaxSize()
	}
	var tokens api.TokenIssuer
	if parts.Tokens != nil {
		tokens = parts.Tokens
	}

	srv := &apiServer{
		bind:     strings.TrimSpace(bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		projects: api.NewProjectService(parts.Store, uploads, parts.Emitter, tokens, logger),
		auth:     authenticator,
		maxBody:  maxBody,
	}
	if parts.Tokens != nil {
		srv.realtime = realtime.NewServer(parts.Hub, parts.Tokens, logger)
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/upload", s.auth.Require(http.HandlerFunc(s.handleUpload)))
	mux.Handle("POST /api/projects", s.auth.Require(http.HandlerFunc(s.handleCreateProject)))
	mux.Handle("GET /api/projects", s.auth.Require(http.HandlerFunc(s.handleListProjects)))
	mux.Handle("GET /api/projects/{id}", s.auth.Require(http.HandlerFunc(s.handleGetProject)))
	mux.Handle("GET /api/realtime/token", s.auth.Require(http.HandlerFunc(s.handleRealtimeToken)))
	mux.HandleFunc("GET /api/realtime/ws", s.handleRealtimeWS)
	mux.HandleFunc("GET /api/realtime/events", s.handleRealtimeEvents)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.Handle("POST /api/notifications/test", s.auth.Require(http.HandlerFunc(s.handleTestNotification)))
	if local, ok := s.localFiles(); ok {
		mux.Handle("GET /files/", http.StripPrefix("/files/", local))
	}
	return s.requestIDs(s.auth.Middleware(mux))
}

// localFiles serves blobs from disk when the local backend is active.
func (s *apiServer) localFiles() (http.Handler, bool) {
	if s.daemon.parts.Blobs == nil {
		return nil, false
	}
	local, ok := s.daemon.parts.Blobs.Backend().(*blob.Local)
	if !ok {
		return nil, false
	}
	return local.Handler(), true
}

func (s *apiServer) requestIDs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload",
				fmt.Sprintf("file exceeds limit of %d bytes", s.maxBody), nil))
			return
		}
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "expected multipart form with a file field", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "file is required", err))
		return
	}
	defer file.Close()

	resp, err := s.projects.Upload(r.Context(), userID(r),
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.CreateProjectRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "create project", "invalid JSON body", err))
		return
	}
	resp, err := s.projects.Create(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list projects", "limit must be a positive integer", nil))
			return
		}
		limit = parsed
	}
	resp, err := s.projects.List(r.Context(), userID(r), limit, query.Get("cursor"), query.Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	view, err := s.projects.Describe(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleRealtimeToken(w http.ResponseWriter, r *http.Request) {
	resp, err := s.projects.RealtimeToken(r.Context(), userID(r), r.URL.Query().Get("projectId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRealtimeWS(w http.ResponseWriter, r *http.Request) {
	if s.realtime == nil {
		s.writeError(w, r, services.Wrap(services.ErrConfiguration, "api", "realtime", "realtime tokens not configured", nil))
		return
	}
	s.realtime.ServeWebSocket(w, r)
}

func (s *apiServer) handleRealtimeEvents(w http.ResponseWriter, r *http.Request) {
	if s.realtime == nil {
		s.writeError(w, r, services.Wrap(services.ErrConfiguration, "api", "realtime", "realtime tokens not configured", nil))
		return
	}
	s.realtime.ServeEvents(w, r)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.statusPayload(r.Context()))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrFatal, "api", "test notification", message, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationTestResponse{Sent: sent, Message: message})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.NewErrorResponse(err))
}

func userID(r *http.Request) string {
	id, _ := services.UserIDFromContext(r.Context())
	return id
}

func newRequestID() string {
	return uuid.NewString()
}

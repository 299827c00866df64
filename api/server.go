package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/puzzleparty/server/auth"
	"github.com/puzzleparty/server/puzzle/engine"
	"github.com/puzzleparty/server/puzzle/service"
	"github.com/puzzleparty/server/puzzle/session"
	"github.com/puzzleparty/server/transport/eventbus"
)

// Server is the HTTP edge of the puzzle server. It exposes the puzzle and
// auth endpoints, the event-bus upgrade, metrics, and static assets.
type Server struct {
	service   service.PuzzleService
	auth      *auth.Service
	hub       *eventbus.Hub
	metrics   http.Handler
	logger    *slog.Logger
	publicURL string
	staticDir string
	router    *mux.Router
}

// Options carries the optional server collaborators.
type Options struct {
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	// PublicURL is the externally reachable base URL encoded into the QR
	// code. When empty the QR endpoint derives it from the request host.
	PublicURL string

	// StaticDir serves the browser client when non-empty.
	StaticDir string

	Logger *slog.Logger
}

// NewServer creates the API server and wires its routes.
func NewServer(puzzleService service.PuzzleService, authService *auth.Service, hub *eventbus.Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		service:   puzzleService,
		auth:      authService,
		hub:       hub,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		publicURL: opts.PublicURL,
		staticDir: opts.StaticDir,
		router:    mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	puzzle := api.PathPrefix("/puzzle-api").Subrouter()
	puzzle.HandleFunc("/play", s.handlePlay).Methods("POST")
	puzzle.HandleFunc("/join", s.handleJoin).Methods("POST")
	puzzle.HandleFunc("/swap", s.handleSwap).Methods("POST")
	puzzle.HandleFunc("/qr", s.handleQR).Methods("GET")
	puzzle.HandleFunc("/sessions", s.handleSessions).Methods("GET")

	authAPI := api.PathPrefix("/auth-api").Subrouter()
	authAPI.HandleFunc("/login", s.handleLogin).Methods("POST")
	authAPI.HandleFunc("/auth/signup", s.handleSignUp).Methods("POST")
	// The browser client POSTs the role lookup; GET is kept for convenience.
	authAPI.HandleFunc("/auth/role", s.handleRole).Methods("GET", "POST")

	s.router.HandleFunc("/eventbus", s.handleEventBus)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}

	if s.staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, engine.ErrOutOfRange),
		errors.Is(err, engine.ErrSamePosition):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionAlreadyExists),
		errors.Is(err, session.ErrDuplicateUsername),
		errors.Is(err, session.ErrAlreadySolved),
		errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// flattenBoard renders a board payload in the flat positionN/imageN shape
// the browser client consumes.
func flattenBoard(p *service.BoardPayload) map[string]any {
	resp := make(map[string]any, 2*len(p.Pieces)+4)
	for _, piece := range p.Pieces {
		n := strconv.Itoa(piece.Piece)
		resp["position"+n] = piece.Position
		resp["image"+n] = piece.Image
	}
	resp["puzzleId"] = p.PuzzleID
	resp["dimensionCols"] = p.Cols
	resp["onlineUsers"] = p.OnlineUsers
	resp["end"] = p.Solved
	return resp
}

// intFromJSON coerces a decoded JSON value into an int. Clients send grid
// positions both as numbers and as strings.
func intFromJSON(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case json.Number:
		return strconv.Atoi(n.String())
	}
	return 0, fmt.Errorf("value %v is not a position", v)
}

// Puzzle Handlers

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req service.PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload, err := s.service.Play(r.Context(), req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, flattenBoard(payload))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req service.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payload, err := s.service.Join(r.Context(), req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, flattenBoard(payload))
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PuzzleID  string `json:"puzzleId,omitempty"`
		Position0 any    `json:"position0"`
		Position1 any    `json:"position1"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p0, err := intFromJSON(req.Position0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "position0 must be a grid position")
		return
	}
	p1, err := intFromJSON(req.Position1)
	if err != nil {
		respondError(w, http.StatusBadRequest, "position1 must be a grid position")
		return
	}

	if err := s.service.Swap(r.Context(), req.PuzzleID, p0, p1); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.service.Sessions(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	target := s.publicURL
	if target == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		target = scheme + "://" + r.Host
	}

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// Auth Handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := s.auth.SignUp(r.Context(), req.Name, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":       account.ID,
		"username": account.Username,
	})
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}

	role, err := s.auth.Role(token)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"role": role})
}

// bearerToken extracts a token from the Authorization header or, for
// browser WebSocket handshakes that cannot set headers, the token query
// parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// EventBus Handler

func (s *Server) handleEventBus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	claims, err := s.auth.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	puzzleID := r.URL.Query().Get("puzzle")
	if puzzleID == "" {
		puzzleID = service.DefaultPuzzleID
	}

	s.hub.ServeBus(w, r, puzzleID, claims.Username)
}

// Health check

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fridge/internal/board"
	"fridge/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Server struct {
	cfg   config.APIConfig
	log   *slog.Logger
	board *board.Service
	mux   *chi.Mux
	now   func() time.Time
}

func New(cfg config.APIConfig, logger *slog.Logger, boardSvc *board.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:   cfg,
		log:   logger,
		board: boardSvc,
		mux:   chi.NewRouter(),
		now:   time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsAllowAll)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/user/{user_id}", s.handleGetUser)
		r.Post("/user/{user_id}", s.handleUpdateUser)
		r.Post("/user/{user_id}/trade", s.handleRecordTrade)
		r.Get("/live-wins", s.handleLiveWins)
		r.Post("/close_month", s.handleCloseMonth)
		r.Get("/winners", s.handleAllWinners)
		r.Get("/winners/{month}", s.handleWinners)
	})

	r.Get("/", s.handleIndex)
	if s.cfg.StaticDir != "" {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
		r.Get("/static/*", fileServer.ServeHTTP)
	}
}

// corsAllowAll mirrors the permissive browser policy the board frontend
// relies on.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization, Idempotency-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StaticDir != "" {
		index := filepath.Join(s.cfg.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Kenzies Fridge API - static index not found"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	rows, err := s.board.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": rows,
		"timestamp":   board.Timestamp(s.now()),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	view, err := s.board.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var in board.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.IdempotencyKey = idempotencyKey(r)
	view, changedNick, err := s.board.UpdateUser(r.Context(), chi.URLParam(r, "user_id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{"status": "ok", "user": view}
	if changedNick != "" {
		resp["message"] = "nickname set to " + changedNick
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var in board.TradeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.IdempotencyKey = idempotencyKey(r)
	view, changedNick, err := s.board.RecordTrade(r.Context(), chi.URLParam(r, "user_id"), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{"status": "ok", "user": view}
	if changedNick != "" {
		resp["message"] = "nickname set to " + changedNick
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLiveWins(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeDomainError(w, board.ErrInvalidLimit)
		return
	}
	q := board.RecentQuery{
		Limit:    limit,
		Nickname: r.URL.Query().Get("nickname"),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("minutes")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			writeDomainError(w, board.ErrInvalidMinutes)
			return
		}
		q.Minutes = &minutes
	}
	entries, summary, err := s.board.RecentTrades(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recent_trades": entries,
		"summary":       summary,
		"timestamp":     board.Timestamp(s.now()),
	})
}

func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request) {
	result, err := s.board.CloseMonth(r.Context(), idempotencyKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]any{"status": result.Status, "month": result.Month}
	if result.Status == board.CloseStatusClosed {
		// An already-closed month reports no podium at all, not an empty one.
		resp["podium"] = result.Podium
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")
	snap, err := s.board.Winners(r.Context(), month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "winners": snap})
}

func (s *Server) handleAllWinners(w http.ResponseWriter, r *http.Request) {
	latest, all, err := s.board.AllWinners(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if latest == "" {
		writeJSON(w, http.StatusOK, map[string]any{"latest": nil, "monthly_winners": map[string]any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latest":          latest,
		"winners":         all[latest],
		"monthly_winners": all,
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrInvalidResult),
		errors.Is(err, board.ErrInvalidLimit),
		errors.Is(err, board.ErrInvalidMinutes):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, board.ErrDuplicateIdempotency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, board.ErrMonthNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// idempotencyKey returns the client-provided write key, or a fresh one so
// every write still claims a key.
func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/codsworth/internal/assistant"
	"github.com/nidhogg/codsworth/internal/briefing"
	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/gateway"
	"github.com/nidhogg/codsworth/internal/recall"
	"go.uber.org/zap"
)

// Assistant is the conversational surface the API exposes.
type Assistant interface {
	Handle(ctx context.Context, userID, message string) (*assistant.Reply, error)
	Execute(ctx context.Context, userID string, actions []engine.Action) engine.BatchResult
	Briefing(ctx context.Context, userID string) *briefing.Snapshot
}

// Recaller searches the semantic memory index.
type Recaller interface {
	Query(ctx context.Context, userID, query string, topK int) ([]recall.Result, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	assist      Assistant
	recaller    Recaller
	broadcaster *gateway.Broadcaster
	restGW      *gateway.RESTAdapter
	gw          *gateway.Gateway
	logger      *zap.Logger
}

// NewHandler creates a new API handler. recaller, broadcaster, restGW, and
// gw may be nil; their routes report unavailable.
func NewHandler(
	assist Assistant,
	recaller Recaller,
	broadcaster *gateway.Broadcaster,
	restGW *gateway.RESTAdapter,
	gw *gateway.Gateway,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assist:      assist,
		recaller:    recaller,
		broadcaster: broadcaster,
		restGW:      restGW,
		gw:          gw,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Conversation routes
		r.Post("/message", h.postMessage)
		r.Post("/actions", h.postActions)

		// Entity read routes
		r.Get("/lists", h.getLists)
		r.Get("/schedules", h.getSchedules)
		r.Get("/memory", h.getMemory)
		r.Get("/context", h.getContext)
		r.Get("/recall", h.getRecall)

		// Gateway routes
		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "codsworth"})
}

type messageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type messageResponse struct {
	Response string             `json:"response"`
	Batch    engine.BatchResult `json:"batch"`
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and message are required"})
		return
	}

	reply, err := h.assist.Handle(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.logger.Error("message handling failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Response: reply.Text, Batch: reply.Batch})
}

type actionsRequest struct {
	UserID  string          `json:"user_id"`
	Actions []engine.Action `json:"actions"`
}

func (h *Handler) postActions(w http.ResponseWriter, r *http.Request) {
	var req actionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	if len(req.Actions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actions are required"})
		return
	}

	result := h.assist.Execute(r.Context(), req.UserID, req.Actions)
	writeJSON(w, http.StatusOK, result)
}

// userID pulls the user_id query parameter, writing a 400 when absent.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return "", false
	}
	return id, true
}

func (h *Handler) getLists(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	snap := h.assist.Briefing(r.Context(), id)
	writeJSON(w, http.StatusOK, snap.Lists)
}

func (h *Handler) getSchedules(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	snap := h.assist.Briefing(r.Context(), id)
	writeJSON(w, http.StatusOK, snap.Schedules)
}

func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	snap := h.assist.Briefing(r.Context(), id)
	writeJSON(w, http.StatusOK, snap.Memory)
}

func (h *Handler) getContext(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	snap := h.assist.Briefing(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"context": snap.Render()})
}

func (h *Handler) getRecall(w http.ResponseWriter, r *http.Request) {
	if h.recaller == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "semantic recall not configured"})
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	topK := 5
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			topK = n
		}
	}

	results, err := h.recaller.Query(r.Context(), id, query, topK)
	if err != nil {
		h.logger.Error("recall query failed", zap.String("user_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if results == nil {
		results = []recall.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if msg.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}
	if msg.Type == "" {
		msg.Type = gateway.BroadcastAnnouncement
	}
	if err := h.broadcaster.Send(r.Context(), &msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

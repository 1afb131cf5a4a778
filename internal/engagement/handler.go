package engagement

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler adapts Service to HTTP. It owns no business logic.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /engagements                 → list caller's engagements
//	POST /engagements                 → company sends an offer
//	POST /engagements/{id}/accept     → candidate accepts; returns {roomId}
//	POST /engagements/{id}/decline    → candidate declines
//	POST /jobs/{id}/apply             → candidate applies; returns {roomId}
//	GET  /rooms/{id}/messages         → room timeline
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts all engagement-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/engagements", h.handleEngagements)
	mux.HandleFunc("/engagements/", h.handleEngagementAction)
	mux.HandleFunc("/jobs/", h.handleJobAction)
	mux.HandleFunc("/rooms/", h.handleRoomMessages)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleEngagements handles GET and POST /engagements
func (h *Handler) handleEngagements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listEngagements(w, r)
	case http.MethodPost:
		h.createOffer(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEngagementAction handles POST /engagements/{id}/accept|decline
func (h *Handler) handleEngagementAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	engagementID := parts[1]
	action := parts[2]

	switch action {
	case "accept":
		h.acceptOffer(w, r, engagementID)
	case "decline":
		h.declineOffer(w, r, engagementID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleJobAction handles POST /jobs/{id}/apply
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "apply" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	h.applyToJob(w, r, parts[1])
}

// handleRoomMessages handles GET /rooms/{id}/messages
func (h *Handler) handleRoomMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "messages" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	if userID(r) == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	msgs, err := h.svc.RoomMessages(r.Context(), parts[1])
	if err != nil {
		writeError(w, "listRoomMessages", err)
		return
	}
	jsonOK(w, msgs)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listEngagements(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	list, err := h.svc.ListEngagements(r.Context(), uid)
	if err != nil {
		writeError(w, "listEngagements", err)
		return
	}
	jsonOK(w, list)
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		StudentID string  `json:"studentId"`
		JobID     *string `json:"jobId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StudentID == "" {
		jsonError(w, "body must contain studentId", http.StatusBadRequest)
		return
	}

	rec, err := h.svc.CreateOffer(r.Context(), uid, body.StudentID, body.JobID)
	if err != nil {
		writeError(w, "createOffer", err)
		return
	}
	jsonOK(w, rec)
}

func (h *Handler) acceptOffer(w http.ResponseWriter, r *http.Request, engagementID string) {
	uid := userID(r)
	if uid == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	roomID, err := h.svc.AcceptOffer(r.Context(), uid, engagementID)
	if err != nil {
		writeError(w, "acceptOffer", err)
		return
	}
	jsonOK(w, map[string]string{"roomId": roomID})
}

func (h *Handler) declineOffer(w http.ResponseWriter, r *http.Request, engagementID string) {
	uid := userID(r)
	if uid == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	if err := h.svc.DeclineOffer(r.Context(), uid, engagementID); err != nil {
		writeError(w, "declineOffer", err)
		return
	}
	jsonOK(w, map[string]string{"status": string(StatusDeclined)})
}

func (h *Handler) applyToJob(w http.ResponseWriter, r *http.Request, jobID string) {
	uid := userID(r)
	if uid == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	roomID, err := h.svc.ApplyToJob(r.Context(), uid, jobID)
	if err != nil {
		writeError(w, "applyToJob", err)
		return
	}
	jsonOK(w, map[string]string{"roomId": roomID})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func userID(r *http.Request) string {
	return r.Header.Get("x-user-id")
}

// writeError maps domain errors to HTTP responses. Transient store failures
// come back as 503 so the Gateway retries; retrying the workflow is safe.
func writeError(w http.ResponseWriter, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, ErrUnavailable):
		log.Printf("[engagement] %s store unavailable: %v", op, err)
		jsonError(w, "temporarily unavailable, please try again", http.StatusServiceUnavailable)
	default:
		log.Printf("[engagement] %s error: %v", op, err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

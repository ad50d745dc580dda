package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// KeyHandler serves the public key endpoints: submit (activation), verify
// (identity lock), and the payload fetch. Responses use the success/message
// envelope the portal front end and the script runtime consume.
type KeyHandler struct {
	access   *service.AccessService
	delivery *service.Delivery
	product  string
	logger   *slog.Logger
}

// NewKeyHandler creates a KeyHandler. The product name appears in error
// directives rendered to the script runtime.
func NewKeyHandler(access *service.AccessService, delivery *service.Delivery, product string, logger *slog.Logger) *KeyHandler {
	if product == "" {
		product = service.DefaultTokenPrefix
	}
	return &KeyHandler{access: access, delivery: delivery, product: product, logger: logger}
}

// submitRequest is the expected payload for the Submit endpoint.
type submitRequest struct {
	Key string `json:"key"`
}

// submitResponse is returned for both successful and failed submissions;
// clients branch on Success.
type submitResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Key           string `json:"key,omitempty"`
	TierLabel     string `json:"tier_label,omitempty"`
	ExpiresStatus string `json:"expires_status,omitempty"`
	Loadstring    string `json:"loadstring,omitempty"`
}

// Submit activates a key on first use and returns its status plus the
// executor one-liner with the portal URL and key baked in.
// POST /api/v1/key/submit
func (h *KeyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Success: false, Message: "Invalid request body."})
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		writeJSON(w, http.StatusOK, submitResponse{Success: false, Message: "Please enter a key."})
		return
	}

	result, err := h.access.Submit(r.Context(), key, time.Now().UTC())
	if err != nil {
		var expired *service.ExpiredError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusOK, submitResponse{Success: false, Message: "Key not found. Please check and try again."})
		case errors.As(err, &expired):
			writeJSON(w, http.StatusOK, submitResponse{
				Success: false,
				Message: fmt.Sprintf("This key has expired (%s tier).", expired.TierLabel),
			})
		default:
			h.logger.Error("submit failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, submitResponse{Success: false, Message: "Server error. Please try again later."})
		}
		return
	}

	loadstring := fmt.Sprintf(`loadstring(game:HttpGet("%s/payload?key=%s",true))()`, baseURL(r), result.Token)
	writeJSON(w, http.StatusOK, submitResponse{
		Success:       true,
		Key:           result.Token,
		TierLabel:     result.TierLabel,
		ExpiresStatus: result.Status,
		Loadstring:    loadstring,
	})
}

// verifyRequest is the expected payload for the Verify endpoint.
type verifyRequest struct {
	Key    string `json:"key"`
	UserID string `json:"userId"`
}

// verifyResponse mirrors the original verify contract.
type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Expires string `json:"expires,omitempty"`
}

// Verify validates a key and binds it to the presenting identity. The first
// identity to verify claims the key for exclusive use.
// POST /api/v1/key/verify
func (h *KeyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Success: false, Message: "Invalid request body."})
		return
	}
	key := strings.TrimSpace(req.Key)
	userID := strings.TrimSpace(req.UserID)
	if key == "" || userID == "" {
		writeJSON(w, http.StatusOK, verifyResponse{Success: false, Message: "Missing key or userId."})
		return
	}

	result, err := h.access.Verify(r.Context(), key, userID, time.Now().UTC())
	if err != nil {
		var expired *service.ExpiredError
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusOK, verifyResponse{Success: false, Message: "Key not found. Get a valid key at the portal."})
		case errors.As(err, &expired):
			writeJSON(w, http.StatusOK, verifyResponse{
				Success: false,
				Message: fmt.Sprintf("Your key has expired (%s tier).", expired.TierLabel),
			})
		case errors.Is(err, store.ErrAlreadyLocked):
			writeJSON(w, http.StatusOK, verifyResponse{Success: false, Message: "This key is already linked to another account."})
		default:
			h.logger.Error("verify failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, verifyResponse{Success: false, Message: "Server error. Please try again later."})
		}
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		Tier:    result.TierLabel,
		Expires: result.Status,
	})
}

// Payload hands the script to a valid key holder. Errors are rendered as
// error(...) directives so the consuming script runtime surfaces them
// directly instead of choking on an HTML error page.
// GET /payload?key=...
func (h *KeyHandler) Payload(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		h.writeDirective(w, http.StatusForbidden, "No key provided.")
		return
	}

	payload, err := h.delivery.FetchPayload(r.Context(), key, time.Now().UTC())
	if err != nil {
		var expired *service.ExpiredError
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.writeDirective(w, http.StatusForbidden, "Invalid key.")
		case errors.As(err, &expired):
			h.writeDirective(w, http.StatusForbidden, fmt.Sprintf("Key expired (%s tier).", expired.TierLabel))
		case errors.Is(err, service.ErrPayloadMissing):
			h.logger.Error("payload fetch failed", "error", err)
			h.writeDirective(w, http.StatusInternalServerError, "Script file missing on server.")
		default:
			h.logger.Error("payload fetch failed", "error", err)
			h.writeDirective(w, http.StatusInternalServerError, "Server error.")
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(payload))
}

func (h *KeyHandler) writeDirective(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "error(%q)", "["+h.product+"] "+message)
}

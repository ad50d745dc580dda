package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// AdminHandler serves the operator endpoints: session login, key issuance,
// listing, stats, and deletion. All routes except Login sit behind the
// RequireAdmin middleware.
type AdminHandler struct {
	issuer  *service.Issuer
	admin   *service.AdminService
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(issuer *service.Issuer, admin *service.AdminService, authSvc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{issuer: issuer, admin: admin, authSvc: authSvc, logger: logger}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Secret string `json:"secret"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
}

// Login exchanges the shared admin secret for a JWT session token.
// POST /api/v1/admin/session
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.authSvc.VerifySecret(req.Secret); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid admin secret")
		return
	}

	token, err := h.authSvc.IssueSession()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.authSvc.SessionTTL().Seconds()),
	})
}

// issueRequest is the expected payload for the IssueKeys endpoint.
type issueRequest struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// issueResponse returns the freshly minted tokens. They are shown once;
// afterwards only the listing's status rows are available.
type issueResponse struct {
	Tier  string   `json:"tier"`
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// IssueKeys mints a batch of keys for a tier.
// POST /api/v1/admin/keys
func (h *AdminHandler) IssueKeys(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	tokens, err := h.issuer.Issue(r.Context(), req.Tier, req.Count)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTier), errors.Is(err, service.ErrInvalidCount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrIssuanceExhausted):
			writeError(w, http.StatusInternalServerError, "Token generation exhausted, try again")
		default:
			writeStoreError(w, h.logger, "issue keys", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, issueResponse{Tier: req.Tier, Count: len(tokens), Keys: tokens})
}

// ListKeys returns one status row per key.
// GET /api/v1/admin/keys
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	rows, err := h.admin.ListWithStatus(r.Context(), time.Now().UTC())
	if err != nil {
		writeStoreError(w, h.logger, "list keys", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": rows})
}

// Stats returns aggregate counts by status.
// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		writeStoreError(w, h.logger, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DeleteKey removes a key permanently.
// DELETE /api/v1/admin/keys/{token}
func (h *AdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.admin.DeleteKey(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Key not found")
			return
		}
		writeStoreError(w, h.logger, "delete key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": token})
}

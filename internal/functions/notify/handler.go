// internal/functions/notify/handler.go
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"congregation-functions/internal/common/auth"
	"congregation-functions/internal/common/errors"
	commonhttp "congregation-functions/internal/common/http"
	"congregation-functions/internal/common/logger"
	"congregation-functions/internal/common/validation"
)

// TokenValidator is the slice of the identity provider client the handler
// needs for test-mode authentication.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// Handler is the HTTP surface of the notify-event function.
type Handler struct {
	service *Service
	db      *sql.DB
	tokens  TokenValidator
	logger  logger.Logger
}

func NewHandler(service *Service, db *sql.DB, tokens TokenValidator, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		db:      db,
		tokens:  tokens,
		logger:  log,
	}
}

// inputSchema is the envelope contract. Event payload contents are
// deliberately unconstrained; only the envelope shape is enforced here.
var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"eventType", "eventData"},
	"properties": map[string]interface{}{
		"eventType": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"eventData": map[string]interface{}{
			"type": "object",
		},
		"testMode": map[string]interface{}{
			"type": "boolean",
		},
		"testRecipient": map[string]interface{}{
			"type": "string",
		},
	},
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if commonhttp.HandlePreflight(w, r) {
		return
	}
	commonhttp.SetCORSHeaders(w)

	if r.Method != http.MethodPost {
		h.writeError(w, errors.NewValidationFailedError("only POST is supported"), http.StatusMethodNotAllowed)
		return
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, errors.NewValidationFailedError("request body is not valid JSON"), 0)
		return
	}
	if err := validation.ValidateAgainstSchema(raw, inputSchema); err != nil {
		h.writeError(w, errors.NewValidationFailedError(err.Error()), 0)
		return
	}

	var input Input
	encoded, _ := json.Marshal(raw)
	if err := json.Unmarshal(encoded, &input); err != nil {
		h.writeError(w, errors.NewValidationFailedError("request body has the wrong shape"), 0)
		return
	}

	if input.TestMode {
		if stdErr := h.authorizeTestMode(r, &input); stdErr != nil {
			h.writeError(w, stdErr, 0)
			return
		}
	}

	event := &Event{
		Type:          input.EventType,
		Data:          input.EventData,
		TestMode:      input.TestMode,
		TestRecipient: input.TestRecipient,
	}

	result, err := h.service.Dispatch(r.Context(), event)
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok {
			h.writeError(w, stdErr, 0)
			return
		}
		h.writeError(w, errors.NewDeliveryFailedError(err), http.StatusInternalServerError)
		return
	}

	h.writeResult(w, result)
}

// authorizeTestMode enforces that only an authenticated admin member can
// redirect a real template send to an arbitrary address.
func (h *Handler) authorizeTestMode(r *http.Request, input *Input) *errors.StandardError {
	if input.TestRecipient == "" || !strings.Contains(input.TestRecipient, "@") {
		return errors.NewValidationFailedError("testMode requires a valid testRecipient address")
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return errors.NewAuthRequiredError("test mode requires a bearer token")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	info, err := h.tokens.ValidateToken(r.Context(), token)
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeAuthRequired {
			return stdErr
		}
		return errors.NewAuthRequiredError("token validation failed")
	}

	var isAdmin bool
	row := h.db.QueryRowContext(r.Context(), `SELECT is_admin FROM members WHERE account_id = $1`, info.Sub)
	if err := row.Scan(&isAdmin); err != nil {
		if err == sql.ErrNoRows {
			return errors.NewForbiddenError("no member record for the authenticated account")
		}
		h.logger.Error("admin lookup failed", map[string]interface{}{"error": err.Error()})
		return errors.NewForbiddenError("could not verify admin privilege")
	}
	if !isAdmin {
		return errors.NewForbiddenError("test mode is restricted to admins")
	}
	return nil
}

func (h *Handler) writeResult(w http.ResponseWriter, result *DispatchResult) {
	out := Output{
		DispatchID: result.DispatchID,
		Message:    result.Message,
	}

	switch result.Status {
	case StatusSent:
		out.Success = true
		out.Recipients = recipientEmails(result.To)
		out.CC = recipientEmails(result.CC)
	case StatusNoRecipients:
		out.Success = true
	default:
		// Degraded sends still answer 200 so the caller's own operation is
		// not rolled back over an email failure.
		out.Success = false
		out.Error = result.Message
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeError(w http.ResponseWriter, stdErr *errors.StandardError, statusOverride int) {
	status := errors.HTTPStatus(stdErr.Code)
	if statusOverride != 0 {
		status = statusOverride
	}
	h.writeJSON(w, status, Output{
		Success: false,
		Error:   stdErr.Error(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body Output) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", map[string]interface{}{"error": err.Error()})
	}
}

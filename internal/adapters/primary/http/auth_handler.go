package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/ticket-tally/internal/adapters/primary/validation"
	"github.com/lorrc/ticket-tally/internal/auth"
)

const maxOperatorLength = 64

// AuthHandler exchanges the shared operator password for an access token.
type AuthHandler struct {
	authenticator *auth.Authenticator
	tokenManager  *auth.TokenManager
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authenticator *auth.Authenticator,
	tokenManager *auth.TokenManager,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		tokenManager:  tokenManager,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "auth"),
	}
}

// RegisterRoutes sets up the auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/token", h.HandleToken)
}

// TokenRequest defines the expected JSON body for a token exchange.
type TokenRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

// Validate validates the token request
func (r *TokenRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("operator", r.Operator).
		MaxLength("operator", r.Operator, maxOperatorLength)
	v.Required("password", r.Password)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TokenResponse is returned on a successful exchange.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	Operator  string `json:"operator"`
}

// HandleToken handles POST /auth/token
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[TokenRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	token, err := h.authenticator.Login(req.Operator, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "token request rejected", "operator", req.Operator)
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "token issued", "operator", req.Operator)
	WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenManager.TTL().Seconds()),
		Operator:  req.Operator,
	})
}

package handler

import (
	"errors"
	"net/http"

	"github.com/tokengate/tokengate-go/internal/logging"
	"github.com/tokengate/tokengate-go/internal/middleware"
	"github.com/tokengate/tokengate-go/internal/model"
	"github.com/tokengate/tokengate-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service      *service.AuthService
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the auth
// cookie Secure and should be set in production.
func NewAuthHandler(svc *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: svc, secureCookie: secureCookie}
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.SignInWithPassword(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	middleware.SetAuthCookie(w, resp.Token, h.secureCookie)
	writeJSON(w, http.StatusOK, resp)
}

// HandleSendPhoneCode handles POST /api/auth/phone/code requests.
func (h *AuthHandler) HandleSendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req model.PhoneCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := h.service.SendVerificationCode(r.Context(), req.Phone); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// HandlePhoneLogin handles POST /api/auth/phone/login requests.
func (h *AuthHandler) HandlePhoneLogin(w http.ResponseWriter, r *http.Request) {
	var req model.PhoneLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.SignInWithPhone(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	middleware.SetAuthCookie(w, resp.Token, h.secureCookie)
	writeJSON(w, http.StatusOK, resp)
}

// HandleSignUp handles POST /api/auth/signup requests.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req model.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	middleware.SetAuthCookie(w, resp.Token, h.secureCookie)
	writeJSON(w, http.StatusCreated, resp)
}

// HandleRefresh handles POST /api/auth/refresh requests.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Refresh(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	middleware.SetAuthCookie(w, resp.Token, h.secureCookie)
	writeJSON(w, http.StatusOK, resp)
}

// HandleLogout handles POST /api/auth/logout requests. Tokens are
// stateless, so logging out only drops the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w, h.secureCookie)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /api/auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), middleware.TokenFromRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]model.UserInfo{"user": user})
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCredentialsRequired),
		errors.Is(err, service.ErrPhoneCodeRequired),
		errors.Is(err, service.ErrSignUpFieldsRequired),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidEmail):
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidCode):
		writeJSON(w, http.StatusUnauthorized, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
	case errors.Is(err, service.ErrAccountExists):
		writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
	default:
		logging.FromContext(r.Context()).Error("auth request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
	}
}

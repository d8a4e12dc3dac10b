package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/store"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
)

// maxJSONBody bounds account and report-edit request bodies.
const maxJSONBody = 64 << 10

type availabilityResponse struct {
	IsAvailable bool   `json:"is_available"`
	Message     string `json:"message"`
}

type sessionResponse struct {
	Message  string `json:"message,omitempty"`
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
}

// CheckUsername handles POST /api/check-username.
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		writeJSON(w, http.StatusOK, availabilityResponse{false, "아이디를 입력해주세요."})
		return
	}
	ok, err := h.accounts.UsernameAvailable(r.Context(), username)
	if err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, availabilityResponse{false, "이미 사용 중인 아이디입니다."})
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{true, "사용 가능한 아이디입니다."})
}

// CheckEmail handles POST /api/check-email.
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		writeJSON(w, http.StatusOK, availabilityResponse{false, "이메일을 입력해주세요."})
		return
	}
	ok, err := h.accounts.EmailAvailable(r.Context(), email)
	if err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, availabilityResponse{false, "이미 가입된 이메일입니다."})
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{true, "사용 가능한 이메일입니다."})
}

// Signup handles POST /api/signup. A successful signup also logs the user in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req validation.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Signup(r.Context(), req)
	switch {
	case errors.Is(err, validation.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", validation.MessageFor(err))
		return
	case errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, r, http.StatusConflict, "DUPLICATE_USERNAME", "이미 사용 중인 아이디입니다.")
		return
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, "DUPLICATE_EMAIL", "이미 가입된 이메일입니다.")
		return
	case err != nil:
		writeInternalError(w, r, h.logger, err)
		return
	}
	if err := h.sessions.SetCookie(w, user.ID, user.Username); err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Message:  "회원가입이 완료되었습니다.",
		LoggedIn: true,
		Username: user.Username,
		UserID:   user.ID,
	})
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Login(r.Context(), req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		requestLogger(r, h.logger).Debug("login rejected", zap.String("username", req.Username))
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "아이디 또는 비밀번호를 확인하세요.")
		return
	}
	if err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	if err := h.sessions.SetCookie(w, user.ID, user.Username); err != nil {
		writeInternalError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Message:  "로그인되었습니다.",
		LoggedIn: true,
		Username: user.Username,
		UserID:   user.ID,
	})
}

// Logout handles GET /api/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "로그아웃되었습니다."})
}

// CheckSession handles GET /api/check-session. An invalid cookie, or one whose
// user no longer exists, reads as logged out.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessionUser(r)
	switch {
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrInvalidSession):
		if errors.Is(err, auth.ErrInvalidSession) {
			requestLogger(r, h.logger).Debug("invalid session cookie", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: false})
		return
	case err != nil:
		writeInternalError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: true, Username: user.Username, UserID: user.ID})
}

// sessionUser verifies the session cookie and loads its user.
func (h *Handler) sessionUser(r *http.Request) (models.User, error) {
	sess, err := h.sessions.FromRequest(r)
	if err != nil {
		return models.User{}, err
	}
	return h.accounts.SessionUser(r.Context(), sess)
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "요청 형식이 올바르지 않습니다.")
		return false
	}
	return true
}

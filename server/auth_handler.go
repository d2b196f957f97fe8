package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parkerpayne/bard/logger"
)

const tokenCookie = "token"

type ctxKey string

const usernameKey ctxKey = "username"

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	NewUsername     string `json:"new_username"`
}

// LoginHandler accepts a JSON body or a urlencoded form.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("[Login] 解析请求体失败", logger.ErrorField(err))
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}
	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if !h.credentials.Verify(req.Username, req.Password) {
		logger.Warn("[Login] 密码验证失败", logger.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.cfg.TokenTTL),
	})

	logger.Info("[Login] 登录成功", logger.String("username", req.Username))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"username": req.Username,
	})
}

// LogoutHandler 清除登录 cookie
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeSuccess(w, "You have been logged out")
}

// ChangePasswordHandler verifies the current password, then stores the new
// password and optionally a new username.
func (h *APIHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CurrentPassword == "" || strings.TrimSpace(req.NewPassword) == "" {
		writeError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}

	username := usernameFrom(r.Context())
	if !h.credentials.Verify(username, req.CurrentPassword) {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	if err := h.credentials.Change(req.CurrentPassword, strings.TrimSpace(req.NewUsername), strings.TrimSpace(req.NewPassword)); err != nil {
		logger.Warn("[Auth] 修改密码失败", logger.String("username", username), logger.ErrorField(err))
		writeErr(w, err)
		return
	}

	logger.Info("[Auth] 凭据已更新", logger.String("username", username))
	writeSuccess(w, "Credentials updated successfully")
}

// bearerToken extracts the token from the Authorization header or the
// login cookie.
func bearerToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", fmt.Errorf("authorization header is required")
}

// AuthMiddleware rejects requests without a valid token and stores the
// username in the request context.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := h.tokens.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func usernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

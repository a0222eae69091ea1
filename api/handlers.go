package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/middleware"
)

const maxBodyBytes = 1 << 20

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID                  string            `json:"id"`
	Email               string            `json:"email"`
	UserType            authgate.UserType `json:"userType"`
	APIServiceCallLimit int               `json:"apiServiceCallLimit"`
}

type authResponse struct {
	Message string                 `json:"message"`
	User    userView               `json:"user"`
	Tokens  authgate.AuthTokenPair `json:"tokens"`
}

type chatResponse struct {
	Message   string `json:"message"`
	Used      int64  `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int64  `json:"remaining"`
}

func viewOf(u authgate.User) userView {
	return userView{ID: u.ID, Email: u.Email, UserType: u.UserType, APIServiceCallLimit: u.APIServiceCallLimit}
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", authgate.ErrInvalidRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", authgate.ErrInvalidRequest)
	}
	return nil
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	user, pair, err := h.svc.Signup(middleware.RequestContext(r), in.Email, in.Password)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.SetAuthCookies(w, h.cookies, pair)
	middleware.WriteJSON(w, http.StatusCreated, authResponse{
		Message: authgate.MessageSignupSuccess,
		User:    viewOf(user),
		Tokens:  pair,
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	user, pair, err := h.svc.Login(middleware.RequestContext(r), in.Email, in.Password)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.SetAuthCookies(w, h.cookies, pair)
	middleware.WriteJSON(w, http.StatusOK, authResponse{
		Message: authgate.MessageLoginSuccess,
		User:    viewOf(user),
		Tokens:  pair,
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFromRequest(r)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Logout(r.Context(), id.Claims.UserID); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.ClearAuthCookies(w, h.cookies)
	middleware.WriteJSON(w, http.StatusOK, middleware.MessageBody{Message: authgate.MessageLogoutSuccess})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFromRequest(r)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	profile, err := h.svc.Profile(r.Context(), id.Claims.UserID)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, profile)
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFromRequest(r)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	u, err := h.svc.APIUsage(r.Context(), id.Claims)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, u)
}

// chat stands in for the downstream obs-vault service. The call has already
// been counted by RequireCallBudget.
func (h *handlers) chat(w http.ResponseWriter, _ *http.Request) {
	used, _ := strconv.ParseInt(w.Header().Get(middleware.CallsUsedHeader), 10, 64)
	limit, _ := strconv.Atoi(w.Header().Get(middleware.CallsLimitHeader))
	middleware.WriteJSON(w, http.StatusAccepted, chatResponse{
		Message:   "Request accepted",
		Used:      used,
		Limit:     limit,
		Remaining: max(int64(limit)-used, 0),
	})
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var update authgate.UserUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		middleware.WriteError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, viewOf(user))
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	middleware.WriteJSON(w, status, resp)
}

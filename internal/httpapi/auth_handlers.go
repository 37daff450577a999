package httpapi

import (
	"errors"
	"net/http"
	"time"

	"enlace.org/internal/audit"
	"enlace.org/internal/auth"
	"enlace.org/internal/obs"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func viewUser(u *auth.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, pair, err := a.auth.Register(r.Context(), req.Username, req.Password, auth.Role(req.Role))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.registered", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":         viewUser(user),
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.ObserveLogin("none", "failure")
		a.writeAuthError(w, r, err)
		return
	}
	obs.ObserveLogin(string(result.Kind), "success")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"kind":     string(result.Kind),
		"username": req.Username,
	})

	body := map[string]any{
		"type":  string(result.Kind),
		"token": result.AccessToken,
	}
	switch result.Kind {
	case auth.KindUser:
		body["refreshToken"] = result.RefreshToken
		body["user"] = viewUser(result.User)
	case auth.KindMunicipality:
		body["municipality"] = map[string]any{
			"id":         result.Municipality.ID,
			"username":   result.Municipality.Username,
			"name":       result.Municipality.Name,
			"department": result.Municipality.Department,
		}
	case auth.KindCompany:
		body["company"] = map[string]any{
			"id":             result.Company.ID,
			"username":       result.Company.Username,
			"name":           result.Company.Name,
			"businessSector": result.Company.BusinessSector,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, user, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh("failure")
		a.writeAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"role":         string(user.Role),
	})
}

// handleLogout always answers 200: revoking an unknown or already-revoked
// token is not a client error.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = decodeJSON(r, &req)
	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		_ = audit.LogEvent(r.Context(), "auth.logout.error", map[string]any{"error": err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	body := map[string]any{
		"id":       principal.ID,
		"username": principal.Username,
		"type":     string(principal.Kind),
	}
	if principal.Role != "" {
		body["role"] = string(principal.Role)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": body})
}

// user administration -------------------------------------------------------

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

type updateUserRequest struct {
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewUser(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewUser(user)})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req.Username, req.Password, auth.Role(req.Role))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.created", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"user": viewUser(user)})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	params := auth.UpdateUserParams{
		Password: req.Password,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		params.Role = &role
	}
	user, err := a.auth.UpdateUser(r.Context(), r.PathValue("id"), params)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.updated", map[string]any{"user_id": user.ID})
	writeJSON(w, http.StatusOK, map[string]any{"user": viewUser(user)})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.auth.DeleteUser(r.Context(), id); err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.deleted", map[string]any{"user_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"message": "user deleted"})
}

// writeAuthError maps auth-service errors onto the uniform taxonomy. Nothing
// here distinguishes "no such user" from "wrong password".
func (a *API) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "missing required fields")
	case errors.Is(err, auth.ErrInvalidRole):
		writeError(w, r, http.StatusBadRequest, "invalid role")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "username already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrUserInactive):
		writeError(w, r, http.StatusUnauthorized, "user inactive or missing")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		obs.LogRequest(map[string]any{
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
			"level":      "error",
			"msg":        "internal_error",
			"request_id": requestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/model"
	"github.com/erazemk/nabava/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB *sql.DB
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func validRole(role string) bool {
	switch role {
	case model.RoleAdmin, model.RoleManager, model.RoleUser:
		return true
	}
	return false
}

// hashPassword applies the account policy and hashes the password.
func hashPassword(w http.ResponseWriter, password string) (string, bool) {
	if err := model.ValidatePassword(password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return "", false
	}
	return string(hash), true
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeAppError(w, r, apperr.Query("Error Retrieving Users", err), "")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password, and role required")
		return
	}
	if !validRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	hash, ok := hashPassword(w, req.Password)
	if !ok {
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, hash, req.Role)
	if errors.Is(err, store.ErrInvalid) {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}
	if err != nil {
		writeAppError(w, r, apperr.Query("Error Creating User", err), "")
		return
	}

	slog.Info("user created", "user", GetClaims(r.Context()).Username, "new_user", req.Username, "role", req.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := store.UpdateUser(r.Context(), h.DB, user.ID, req.Role); err != nil {
		writeAppError(w, r, err, "")
		return
	}
	user.Role = req.Role

	slog.Info("user role updated", "user", GetClaims(r.Context()).Username, "target_user", user.Username, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}
	hash, ok := hashPassword(w, req.Password)
	if !ok {
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	slog.Info("user password reset", "user", GetClaims(r.Context()).Username, "target_user", user.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == user.ID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, user.ID); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	slog.Info("user deleted", "user", claims.Username, "deleted_user", user.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

type privilegesResponse struct {
	UserID     int64    `json:"user_id"`
	Privileges []string `json:"privileges"`
}

// Privileges handles GET /api/users/{id}/privileges. Admins are listed with
// every privilege.
func (h *UsersHandler) Privileges(w http.ResponseWriter, r *http.Request) {
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	set, err := store.UserPrivilegeSet(r.Context(), h.DB, user)
	if err != nil {
		slog.Error("failed to list privileges", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list privileges")
		return
	}
	privs := []string{}
	for name := range set {
		privs = append(privs, name)
	}
	sort.Strings(privs)
	jsonResponse(w, http.StatusOK, privilegesResponse{UserID: user.ID, Privileges: privs})
}

// Grant handles PUT /api/users/{id}/privileges/{priv}.
func (h *UsersHandler) Grant(w http.ResponseWriter, r *http.Request) {
	h.changePrivilege(w, r, true)
}

// Revoke handles DELETE /api/users/{id}/privileges/{priv}.
func (h *UsersHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.changePrivilege(w, r, false)
}

func (h *UsersHandler) changePrivilege(w http.ResponseWriter, r *http.Request, grant bool) {
	priv := r.PathValue("priv")
	if !model.KnownPrivilege(priv) {
		jsonError(w, http.StatusBadRequest, "unknown privilege "+priv)
		return
	}
	user, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	change, verb := store.GrantPrivilege, "granted"
	if !grant {
		change, verb = store.RevokePrivilege, "revoked"
	}
	if err := change(r.Context(), h.DB, user.ID, priv); err != nil {
		slog.Error("failed to change privilege", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to change privilege")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("privilege "+verb, "user", claims.Username, "target_user", user.Username, "privilege", priv)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "privilege " + verb})
}

// targetUser loads the live user named by the id path value, writing the
// error response itself when it cannot.
func (h *UsersHandler) targetUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}
	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeAppError(w, r, apperr.Query("Error Retrieving User", err), "")
		return nil, false
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return user, true
}

package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ukydev/gaadi-fleet/internal/auth"
	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/middleware"
	"github.com/ukydev/gaadi-fleet/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !user.IsActive {
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		http.Error(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	response := models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var registerReq models.RegisterRequest
	if err := json.Unmarshal(body, &registerReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !models.IsValidRole(registerReq.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), registerReq.Username); err == nil {
		http.Error(w, "Username already exists", http.StatusConflict)
		return
	}

	if _, err := h.userCollection.FindUserByEmail(r.Context(), registerReq.Email); err == nil {
		http.Error(w, "Email already exists", http.StatusConflict)
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
		FullName:     registerReq.FullName,
		Phone:        registerReq.Phone,
		VehicleReg:   registerReq.VehicleReg,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		http.Error(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	response := models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

// Logout revokes the caller's token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "Authorization header required", http.StatusUnauthorized)
		return
	}

	h.authService.RevokeToken(authHeader)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "signed out"})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

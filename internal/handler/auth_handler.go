package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/jwtutil"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

var jwtUtil *jwtutil.JWTUtil

// InitJWT wires the JWT utility used by the auth handlers.
func InitJWT(util *jwtutil.JWTUtil) {
	jwtUtil = util
}

// Signup creates a new user account
func Signup(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.SignupCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse signup request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Email == "" || req.Name == "" || req.Role == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_signup")
		return apiError(c, http.StatusBadRequest, "All fields are required")
	}

	trackQuery := prometheus.TrackDBOperation("query")
	_, err := model.FindUserByEmail(database.GetDB(), req.Email)
	trackQuery(time.Now())
	if err == nil {
		log.Warn("Signup for existing email", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return apiError(c, http.StatusBadRequest, "Email already exists")
	}

	hashedPassword, err := model.HashPassword(req.Password)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return apiError(c, http.StatusInternalServerError, "Signup failed")
	}

	user := model.User{
		Email:    req.Email,
		Username: req.Email, // email doubles as the username
		Name:     req.Name,
		Role:     req.Role,
		Password: hashedPassword,
		IsActive: true,
	}

	trackInsert := prometheus.TrackDBOperation("insert")
	result := database.GetDB().Create(&user)
	trackInsert(time.Now())
	if result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return apiError(c, http.StatusInternalServerError, "Signup failed")
	}

	log.Info("User registered", zap.String("email", user.Email), zap.String("role", user.Role))
	return apiSuccess(c, http.StatusCreated, "Signup successful", echo.Map{
		"user": echo.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Login verifies credentials without issuing a token
func Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_login")
		return apiError(c, http.StatusBadRequest, "Email and password are required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := model.FindUserByEmail(database.GetDB(), req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		log.Warn("Invalid credentials", zap.String("email", req.Email))
		prometheus.RecordAuthError("login_failure")
		return apiError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if !user.IsActive {
		prometheus.RecordAuthError("user_inactive")
		return apiError(c, http.StatusForbidden, "User account is disabled")
	}

	log.Info("User logged in", zap.String("email", user.Email))
	return apiSuccess(c, http.StatusOK, "Logged in successfully", echo.Map{
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// JWTLogin verifies credentials and issues access and refresh tokens
func JWTLogin(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_login")
		return apiError(c, http.StatusBadRequest, "Email and password are required")
	}

	trackQuery := prometheus.TrackDBOperation("query")
	user, err := model.FindUserByEmail(database.GetDB(), req.Email)
	trackQuery(time.Now())
	if err != nil || !user.CheckPassword(req.Password) {
		log.Warn("Invalid credentials", zap.String("email", req.Email))
		prometheus.RecordAuthError("login_failure")
		return apiError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	if !user.IsActive {
		prometheus.RecordAuthError("user_inactive")
		return apiError(c, http.StatusForbidden, "Your account has been deactivated. Please contact administrator.")
	}

	now := time.Now()
	trackUpdate := prometheus.TrackDBOperation("update")
	if err := database.GetDB().Model(user).Update("last_login", now).Error; err != nil {
		log.Error("Failed to update last login", zap.Error(err))
	}
	trackUpdate(time.Now())

	accessToken, err := jwtUtil.GenerateAccessToken(user.Email, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate access token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return apiError(c, http.StatusInternalServerError, "Token error")
	}
	refreshToken, err := jwtUtil.GenerateRefreshToken(user.Email, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate refresh token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return apiError(c, http.StatusInternalServerError, "Token error")
	}

	log.Info("User logged in with JWT", zap.String("email", user.Email), zap.String("role", user.Role))
	return apiSuccess(c, http.StatusOK, "Logged in successfully", echo.Map{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user": echo.Map{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"role":       user.Role,
			"last_login": now.Format(time.RFC3339),
		},
	})
}

// UserInfo returns the authenticated user's profile
func UserInfo(c echo.Context) error {
	user, ok := c.Get("user").(*model.User)
	if !ok {
		return apiError(c, http.StatusUnauthorized, "Authentication required")
	}

	return apiSuccess(c, http.StatusOK, "User info retrieved successfully", echo.Map{
		"user": echo.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

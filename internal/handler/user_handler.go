package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/logger"
	"github.com/docuveda/lab-service/prometheus"
)

// ListUsers returns every user account
func ListUsers(c echo.Context) error {
	log := logger.FromEcho(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if err := database.GetDB().Order("last_login desc").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to retrieve users")
	}

	usersData := make([]echo.Map, 0, len(users))
	for _, user := range users {
		usersData = append(usersData, echo.Map{
			"id":        user.ID,
			"name":      user.Name,
			"full_name": user.Name,
			"email":     user.Email,
			"role":      user.Role,
			"is_active": user.IsActive,
		})
	}

	return apiSuccess(c, http.StatusOK, "Users fetched successfully", echo.Map{"users": usersData})
}

// UpdateUserStatus toggles a user account's active flag
func UpdateUserStatus(c echo.Context) error {
	log := logger.FromEcho(c)

	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid user ID")
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return apiError(c, http.StatusBadRequest, "is_active field is required")
	}

	trackQuery := prometheus.TrackDBOperation("query")
	var user model.User
	err = database.GetDB().First(&user, userID).Error
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "User not found")
	}

	trackUpdate := prometheus.TrackDBOperation("update")
	err = database.GetDB().Model(&user).Update("is_active", *req.IsActive).Error
	trackUpdate(time.Now())
	if err != nil {
		log.Error("Failed to update user status", zap.Uint64("user_id", userID), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to update user status")
	}
	user.IsActive = *req.IsActive

	statusLabel := "Inactive"
	if user.IsActive {
		statusLabel = "Active"
	}
	log.Info("User status updated",
		zap.Uint("user_id", user.ID),
		zap.Bool("is_active", user.IsActive))
	return apiSuccess(c, http.StatusOK, "User status updated to "+statusLabel, echo.Map{
		"user": echo.Map{
			"id":         user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"role":       user.Role,
			"is_active":  user.IsActive,
			"last_login": formatLastLogin(user.LastLogin),
		},
	})
}

// GetUser returns a user's details by email
func GetUser(c echo.Context) error {
	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := model.FindUserByEmail(database.GetDB(), c.Param("email"))
	if err != nil {
		return apiError(c, http.StatusNotFound, "User not found")
	}

	return apiSuccess(c, http.StatusOK, "User detail fetched successfully", echo.Map{
		"user": echo.Map{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"is_active":   user.IsActive,
			"last_login":  formatLastLogin(user.LastLogin),
			"date_joined": user.CreatedAt.Format(time.RFC3339),
		},
	})
}

// UpdateUser updates a user's name, role or password
func UpdateUser(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		Name     string `json:"name"`
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid request")
	}

	trackQuery := prometheus.TrackDBOperation("query")
	user, err := model.FindUserByEmail(database.GetDB(), c.Param("email"))
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "User not found")
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}
	if req.Password != "" {
		hashedPassword, err := model.HashPassword(req.Password)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return apiError(c, http.StatusInternalServerError, "Failed to update user")
		}
		updates["password"] = hashedPassword
	}

	if len(updates) > 0 {
		trackUpdate := prometheus.TrackDBOperation("update")
		err = database.GetDB().Model(user).Updates(updates).Error
		trackUpdate(time.Now())
		if err != nil {
			log.Error("Failed to update user", zap.String("email", user.Email), zap.Error(err))
			return apiError(c, http.StatusInternalServerError, "Failed to update user")
		}
	}

	log.Info("User updated", zap.String("email", user.Email))
	return apiSuccess(c, http.StatusOK, "User updated successfully", echo.Map{
		"user": echo.Map{
			"id":          user.ID,
			"name":        user.Name,
			"email":       user.Email,
			"role":        user.Role,
			"is_active":   user.IsActive,
			"last_login":  formatLastLogin(user.LastLogin),
			"date_joined": user.CreatedAt.Format(time.RFC3339),
		},
	})
}

// DeleteUser removes a user account. The caller cannot delete itself, and the
// last super_admin is protected.
func DeleteUser(c echo.Context) error {
	log := logger.FromEcho(c)

	current, ok := c.Get("user").(*model.User)
	if !ok {
		return apiError(c, http.StatusUnauthorized, "Authentication required")
	}

	email := c.Param("email")
	trackQuery := prometheus.TrackDBOperation("query")
	user, err := model.FindUserByEmail(database.GetDB(), email)
	trackQuery(time.Now())
	if err != nil {
		return apiError(c, http.StatusNotFound, "User not found")
	}

	if user.ID == current.ID {
		return apiError(c, http.StatusBadRequest, "You cannot delete your own account")
	}

	if user.Role == model.RoleSuperAdmin {
		count, err := model.CountUsersByRole(database.GetDB(), model.RoleSuperAdmin)
		if err != nil {
			log.Error("Failed to count super admins", zap.Error(err))
			return apiError(c, http.StatusInternalServerError, "Failed to delete user")
		}
		if count <= 1 {
			return apiError(c, http.StatusBadRequest, "Cannot delete the last super_admin")
		}
	}

	trackDelete := prometheus.TrackDBOperation("delete")
	err = database.GetDB().Delete(user).Error
	trackDelete(time.Now())
	if err != nil {
		log.Error("Failed to delete user", zap.String("email", email), zap.Error(err))
		return apiError(c, http.StatusInternalServerError, "Failed to delete user")
	}

	log.Info("User deleted", zap.String("email", email), zap.Uint("deleted_by", current.ID))
	return apiSuccess(c, http.StatusOK, "User "+email+" deleted successfully", nil)
}

func formatLastLogin(lastLogin *time.Time) interface{} {
	if lastLogin == nil {
		return nil
	}
	return lastLogin.Format(time.RFC3339)
}

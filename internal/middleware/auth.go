package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/pkg/jwtutil"
	"github.com/docuveda/lab-service/pkg/logger"
)

// JWTAuthMiddleware validates the bearer token and loads the account it
// belongs to. Disabled accounts are rejected even with a valid token.
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil, db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			// Extract the token from the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Authentication required"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Authentication required"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Invalid or expired token"})
			}

			user, err := model.FindUserByEmail(db, claims.Email)
			if err != nil {
				log.Warn("Token user not found", zap.String("email", claims.Email))
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "User not found"})
			}

			if !user.IsActive {
				log.Warn("Disabled account attempted access", zap.String("email", user.Email))
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "User account is disabled"})
			}

			// Store the user in the context for later use
			c.Set("user", user)
			log.Debug("JWT token validated successfully",
				zap.Uint("user_id", user.ID),
				zap.String("email", user.Email))

			return next(c)
		}
	}
}

// CanManageUsersMiddleware restricts a route to roles allowed to administer
// user accounts.
func CanManageUsersMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get("user").(*model.User)
			if !ok || !user.CanManageUsers() {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "Insufficient permissions"})
			}
			return next(c)
		}
	}
}

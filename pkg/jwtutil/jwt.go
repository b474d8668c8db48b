package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey    string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	Email  string `json:"email"`
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *JWTConfig
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(config *JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: config,
	}
}

// GenerateAccessToken creates a short-lived JWT token with user information
func (j *JWTUtil) GenerateAccessToken(email string, userID uint, role string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}
	return j.signToken(email, userID, role, j.config.AccessExpiry)
}

// GenerateRefreshToken creates a long-lived JWT token with the same claims
func (j *JWTUtil) GenerateRefreshToken(email string, userID uint, role string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}
	return j.signToken(email, userID, role, j.config.RefreshExpiry)
}

func (j *JWTUtil) signToken(email string, userID uint, role string, expiry time.Duration) (string, error) {
	claims := UserClaims{
		Email:  email,
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

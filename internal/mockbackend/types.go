package mockbackend

import (
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
}

// AuthErrorResponse is the body of a rejected mini app request.
type AuthErrorResponse struct {
	Success bool   `json:"success" description:"Always false"`
	Message string `json:"message" description:"Reason"`
}

// TokenRequest obtains a bearer token for the bot system user.
type TokenRequest struct {
	Email    string `json:"email" description:"System user email"`
	Password string `json:"password" description:"System user password"`
}

// TokenResponse carries the issued tokens.
type TokenResponse struct {
	Access    string `json:"access" description:"Bearer token for bot endpoints"`
	Refresh   string `json:"refresh" description:"Refresh token (unused by the mock)"`
	ExpiresIn int    `json:"expires_in" example:"3600" description:"Token lifetime in seconds"`
}

// OrdersResponse wraps the order list.
type OrdersResponse struct {
	Orders []models.Order `json:"orders" description:"Orders, newest first"`
}

package handlers

import (
	"github.com/a4sr3s/voxpipe/internal/domains/transcript"
	"github.com/a4sr3s/voxpipe/internal/domains/user"
)

// Response wrapper types for Swagger documentation

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed successfully"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Something went wrong"`
	Details string `json:"details,omitempty" example:"Validation error details"`
}

// RegisterResponse represents the response for user registration
type RegisterResponse struct {
	Message string            `json:"message" example:"User registered successfully"`
	User    user.UserResponse `json:"user"`
}

// LoginResponse represents the response for user login
type LoginResponse struct {
	Message string            `json:"message" example:"Login successful"`
	User    user.UserResponse `json:"user"`
	Tokens  user.AuthTokens   `json:"tokens"`
}

// RefreshTokenResponse represents the response for token refresh
type RefreshTokenResponse struct {
	Message string          `json:"message" example:"Token refreshed successfully"`
	Tokens  user.AuthTokens `json:"tokens"`
}

// ProfileResponse represents the response for getting user profile
type ProfileResponse struct {
	User user.UserResponse `json:"user"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required" example:"jwt-refresh-token-here"`
}

// SpeechPrefsResponse represents the speech preference state
type SpeechPrefsResponse struct {
	TTSEnabled  bool `json:"ttsEnabled" example:"true"`
	RateLimited bool `json:"rateLimited" example:"false"`
}

// UpdateSpeechPrefsRequest represents the request for toggling speech
type UpdateSpeechPrefsRequest struct {
	TTSEnabled *bool `json:"ttsEnabled" binding:"required" example:"false"`
}

// TranscriptHistoryResponse represents a user's recent turns
type TranscriptHistoryResponse struct {
	Turns []transcript.Turn `json:"turns"`
}

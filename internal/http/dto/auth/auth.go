// Package auth holds the request/response DTOs of the authentication
// endpoints. Wire names are frozen; services never see these types.
package auth

import "time"

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	// Email is required.
	Email string `json:"email"`
	// Password is required.
	Password string `json:"password"`
}

// LoginResponse is the response for a successful (or MFA-pending) login.
type LoginResponse struct {
	// MFARequired signals that a verification code was sent and the login
	// must be completed with POST /v1/auth/mfa.
	MFARequired bool   `json:"mfa_required,omitempty"`
	PrincipalID string `json:"principal_id,omitempty"`

	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresAt   int64  `json:"expires_at,omitempty"` // unix seconds
}

// MFARequest completes a pending MFA login.
type MFARequest struct {
	PrincipalID string `json:"principal_id"`
	Code        string `json:"code"`
}

// SignupRequest is the request body for POST /v1/auth/signup.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	// Role is optional and honored only when visible on signup.
	Role string `json:"role,omitempty"`
}

// SignupResponse confirms the account was created pending verification.
type SignupResponse struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
	Role        string `json:"role,omitempty"`
}

// VerifyEmailRequest consumes the signup verification code.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ResetRequest asks for a password reset code.
type ResetRequest struct {
	Email string `json:"email"`
}

// ResetConfirmRequest consumes the reset code and sets a new password.
type ResetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// MeResponse returns selected verified claims of the access token.
type MeResponse struct {
	OrganizationID string         `json:"organization_id"`
	Superuser      bool           `json:"superuser,omitempty"`
	Claims         map[string]any `json:"claims"`
}

// DeletionRequest starts the account deletion flow.
type DeletionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// DeletionConfirmRequest consumes the deletion confirmation code.
type DeletionConfirmRequest struct {
	Code string `json:"code"`
}

// DeletionResponse reports the deletion schedule.
type DeletionResponse struct {
	State       string    `json:"state"`
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
}

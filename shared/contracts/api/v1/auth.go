package v1

// Endpoint paths (relative to the API prefix).
const (
	PathRegister             = "/auth/register/"
	PathToken                = "/auth/token/"
	PathTokenRefresh         = "/auth/token/refresh/"
	PathMe                   = "/auth/me/"
	PathVerifyEmail          = "/auth/verify-email/"
	PathPasswordReset        = "/auth/password-reset/"
	PathPasswordResetConfirm = "/auth/password-reset/confirm/"
)

// TokenRequest exchanges a username or email plus password for a token pair.
type TokenRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// TokenPair is returned by the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest asks for a new access token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse always carries a new access token. Refresh is only set when
// the backend rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// RegisterResponse echoes the created (pending verification) account.
type RegisterResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// User mirrors the backend user serializer.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserPatch is a partial update of the current user. Email is read-only.
type UserPatch struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// VerifyEmailRequest confirms an email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// PasswordResetRequest starts a password reset for an email address.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest completes a password reset.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Detail is the generic {"detail": "..."} acknowledgement body.
type Detail struct {
	Detail string `json:"detail"`
}

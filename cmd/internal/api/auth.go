package api

import (
	"context"
	"net/http"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// Auth covers the /auth/ endpoints.
type Auth struct {
	c Caller
}

func NewAuth(c Caller) *Auth { return &Auth{c: c} }

// Token exchanges credentials for a token pair.
func (a *Auth) Token(ctx context.Context, req apiv1.TokenRequest) (apiv1.TokenPair, error) {
	var out apiv1.TokenPair
	err := a.c.Unauthenticated(ctx, http.MethodPost, apiv1.PathToken, req, &out)
	return out, err
}

func (a *Auth) Register(ctx context.Context, req apiv1.RegisterRequest) (apiv1.RegisterResponse, error) {
	var out apiv1.RegisterResponse
	err := a.c.Unauthenticated(ctx, http.MethodPost, apiv1.PathRegister, req, &out)
	return out, err
}

// Me returns the current user.
func (a *Auth) Me(ctx context.Context) (apiv1.User, error) {
	var out apiv1.User
	err := a.c.Get(ctx, apiv1.PathMe, nil, &out)
	return out, err
}

func (a *Auth) UpdateMe(ctx context.Context, patch apiv1.UserPatch) (apiv1.User, error) {
	var out apiv1.User
	err := a.c.Patch(ctx, apiv1.PathMe, patch, &out)
	return out, err
}

func (a *Auth) VerifyEmail(ctx context.Context, tok string) (apiv1.Detail, error) {
	var out apiv1.Detail
	err := a.c.Unauthenticated(ctx, http.MethodPost, apiv1.PathVerifyEmail, apiv1.VerifyEmailRequest{Token: tok}, &out)
	return out, err
}

func (a *Auth) RequestPasswordReset(ctx context.Context, email string) (apiv1.Detail, error) {
	var out apiv1.Detail
	err := a.c.Unauthenticated(ctx, http.MethodPost, apiv1.PathPasswordReset, apiv1.PasswordResetRequest{Email: email}, &out)
	return out, err
}

func (a *Auth) ConfirmPasswordReset(ctx context.Context, tok, password string) (apiv1.Detail, error) {
	var out apiv1.Detail
	err := a.c.Unauthenticated(ctx, http.MethodPost, apiv1.PathPasswordResetConfirm,
		apiv1.PasswordResetConfirmRequest{Token: tok, Password: password}, &out)
	return out, err
}

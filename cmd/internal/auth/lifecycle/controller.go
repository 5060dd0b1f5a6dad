package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/api"
	"vivahvows/cmd/internal/auth/session"
	"vivahvows/cmd/internal/gateway"
	"vivahvows/cmd/security/password"
	"vivahvows/cmd/security/token"
)

// LoginInput identifies the account by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Controller owns the session state machine.
type Controller struct {
	gw       *gateway.Gateway
	store    session.Store
	auth     *api.Auth
	profiles *api.Profiles
	policy   password.Config
	log      *slog.Logger

	mu      sync.RWMutex
	state   State
	loading bool
	user    *session.Identity
	profile *apiv1.Profile

	subs   map[int]chan Event
	nextID int
}

// Options configures a Controller.
type Options struct {
	Policy password.Config
	Logger *slog.Logger
}

// New returns a Controller in the anonymous, loading state. Call Bootstrap
// to restore a persisted session.
func New(gw *gateway.Gateway, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	policy := opts.Policy
	if policy == (password.Config{}) {
		policy = password.DefaultConfig()
	}

	c := &Controller{
		gw:       gw,
		store:    gw.Store(),
		auth:     api.NewAuth(gw),
		profiles: api.NewProfiles(gw),
		policy:   policy,
		log:      log,
		state:    StateAnonymous,
		loading:  true,
		subs:     make(map[int]chan Event),
	}
	gw.OnSessionCleared(c.sessionCleared)
	return c
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Loading is true until the first Bootstrap finishes.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// User returns a copy of the cached identity, or nil when anonymous.
func (c *Controller) User() *session.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Profile returns a copy of the cached profile, or nil.
func (c *Controller) Profile() *apiv1.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// Subscribe returns a channel of state changes and a cancel func. The
// channel is closed by cancel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Bootstrap restores a persisted session. Without a stored pair it settles
// anonymous; with one it verifies the pair by fetching the identity and
// profile. Any identity failure clears the store. Loading is false on return.
func (c *Controller) Bootstrap(ctx context.Context) error {
	epoch := c.gw.Epoch()
	snap, ok := c.store.Get(ctx)
	if !ok {
		c.update(c.settleAnonymousLocked, "")
		return nil
	}

	c.update(func() {
		c.state = StateAuthenticating
		if snap.User != nil {
			u := *snap.User
			c.user = &u
		}
	}, "")

	user, profile, err := c.fetchAccount(ctx)
	if err != nil {
		c.log.Info("auth.bootstrap_failed", "err", err, "access_fp", token.Fingerprint(snap.Access))
		c.clearSession(ctx, epoch, gateway.ClearedBootstrapFailed)
		c.update(c.settleAnonymousLocked, "")
		return err
	}

	c.persistUser(ctx, epoch, user)
	applied := c.updateAt(epoch, StateAuthenticating, func() {
		c.state = StateAuthenticated
		c.loading = false
		c.user = user
		c.profile = profile
	})
	if !applied {
		// Logged out while the account was loading.
		c.update(func() { c.loading = false }, "")
		return nil
	}
	c.log.Info("auth.bootstrap_ok", "user_id", user.ID)
	return nil
}

// Login exchanges credentials for a token pair and loads the account.
// Loading is false on return.
func (c *Controller) Login(ctx context.Context, in LoginInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := checkLoginInput(in); err != nil {
		return err
	}

	c.update(func() { c.state = StateAuthenticating }, "")

	pair, err := c.auth.Token(ctx, apiv1.TokenRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err == nil && (pair.Access == "" || pair.Refresh == "") {
		err = errors.New("token response missing access or refresh")
	}
	if err != nil {
		c.update(c.settleAnonymousLocked, "")
		c.log.Info("auth.login_failed", "username", in.Username, "err", err)
		return invalidCredentials(err)
	}

	creds := session.Credentials{Access: pair.Access, Refresh: pair.Refresh}
	epoch, err := c.gw.StartSession(ctx, session.Snapshot{Credentials: creds})
	if err != nil {
		c.update(c.settleAnonymousLocked, "")
		return fmt.Errorf("persist session: %w", err)
	}

	user, profile, err := c.fetchAccount(ctx)
	if err != nil {
		c.clearSession(ctx, epoch, gateway.ClearedLoginFailed)
		c.update(c.settleAnonymousLocked, "")
		c.log.Info("auth.login_identity_failed", "err", err)
		return err
	}

	c.persistUser(ctx, epoch, user)
	applied := c.updateAt(epoch, StateAuthenticating, func() {
		c.state = StateAuthenticated
		c.loading = false
		c.user = user
		c.profile = profile
	})
	if !applied {
		c.update(func() { c.loading = false }, "")
		return fmt.Errorf("%w: session ended during login", ErrNotAuthenticated)
	}
	c.log.Info("auth.login_ok", "user_id", user.ID, "access_fp", token.Fingerprint(creds.Access))
	return nil
}

// Register submits the registration form. It never establishes a session:
// the backend requires email verification first.
func (c *Controller) Register(ctx context.Context, in RegisterInput) (apiv1.RegisterResponse, error) {
	if err := c.policy.ValidateFor(in.Password, in.Username, in.Email); err != nil {
		return apiv1.RegisterResponse{}, passwordError(err, c.policy)
	}

	out, err := c.auth.Register(ctx, apiv1.RegisterRequest{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		return apiv1.RegisterResponse{}, validation(err, FallbackRegister)
	}
	c.log.Info("auth.registered", "username", out.Username)
	return out, nil
}

// Logout ends the session locally. It makes no network call.
func (c *Controller) Logout(ctx context.Context) error {
	c.update(c.settleAnonymousLocked, "")
	if err := c.gw.EndSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.log.Info("auth.logout")
	return nil
}

// UpdateIdentity patches the current user. On failure the cache is
// untouched. If the session ends while the patch is on the wire, the result
// is dropped and ErrNotAuthenticated is returned.
func (c *Controller) UpdateIdentity(ctx context.Context, patch apiv1.UserPatch) (*session.Identity, error) {
	epoch, err := c.authenticatedEpoch()
	if err != nil {
		return nil, err
	}
	u, err := c.auth.UpdateMe(ctx, patch)
	if err != nil {
		return nil, validation(err, "Update failed")
	}

	id := identityFrom(u)
	if !c.persistUser(ctx, epoch, id) {
		return nil, ErrNotAuthenticated
	}
	if !c.updateAt(epoch, StateAuthenticated, func() { c.user = id }) {
		return nil, ErrNotAuthenticated
	}
	return c.User(), nil
}

// UpdateProfile patches the caller's profile. On failure the cache is untouched.
func (c *Controller) UpdateProfile(ctx context.Context, patch apiv1.ProfilePatch) (*apiv1.Profile, error) {
	epoch, err := c.authenticatedEpoch()
	if err != nil {
		return nil, err
	}
	p, err := c.profiles.UpdateMe(ctx, patch)
	if err != nil {
		return nil, validation(err, "Update failed")
	}
	if !c.updateAt(epoch, StateAuthenticated, func() { c.profile = &p }) {
		return nil, ErrNotAuthenticated
	}
	return c.Profile(), nil
}

// RefreshProfile reloads the caller's profile.
func (c *Controller) RefreshProfile(ctx context.Context) (*apiv1.Profile, error) {
	epoch, err := c.authenticatedEpoch()
	if err != nil {
		return nil, err
	}
	p, err := c.profiles.Me(ctx)
	if err != nil {
		return nil, err
	}
	if !c.updateAt(epoch, StateAuthenticated, func() { c.profile = &p }) {
		return nil, ErrNotAuthenticated
	}
	return c.Profile(), nil
}

func (c *Controller) VerifyEmail(ctx context.Context, tok string) (string, error) {
	d, err := c.auth.VerifyEmail(ctx, strings.TrimSpace(tok))
	if err != nil {
		return "", validation(err, "Verification failed")
	}
	return d.Detail, nil
}

func (c *Controller) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	d, err := c.auth.RequestPasswordReset(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", validation(err, "Password reset failed")
	}
	return d.Detail, nil
}

// ConfirmPasswordReset sets a new password with a reset token.
func (c *Controller) ConfirmPasswordReset(ctx context.Context, tok, newPassword string) (string, error) {
	if err := c.policy.Validate(newPassword); err != nil {
		return "", passwordError(err, c.policy)
	}
	d, err := c.auth.ConfirmPasswordReset(ctx, strings.TrimSpace(tok), newPassword)
	if err != nil {
		return "", validation(err, "Password reset failed")
	}
	return d.Detail, nil
}

// DeleteAccount deletes the caller's account and logs out.
func (c *Controller) DeleteAccount(ctx context.Context) error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if err := c.profiles.DeleteMe(ctx); err != nil {
		return err
	}
	return c.Logout(ctx)
}

// fetchAccount loads identity and profile concurrently. A profile failure is
// not fatal: a freshly verified account may not have one yet.
func (c *Controller) fetchAccount(ctx context.Context) (*session.Identity, *apiv1.Profile, error) {
	var (
		me      apiv1.User
		profile *apiv1.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := c.auth.Me(gctx)
		if err != nil {
			return fmt.Errorf("fetch identity: %w", err)
		}
		me = u
		return nil
	})
	g.Go(func() error {
		p, err := c.profiles.Me(gctx)
		if err != nil {
			c.log.Debug("auth.profile_unavailable", "err", err)
			return nil
		}
		profile = &p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return identityFrom(me), profile, nil
}

// sessionCleared runs when the gateway clears the store.
func (c *Controller) sessionCleared(reason string) {
	c.mu.RLock()
	already := c.state == StateAnonymous && c.user == nil
	c.mu.RUnlock()
	if already {
		return
	}
	c.log.Info("auth.session_ended", "reason", reason)
	c.update(c.resetLocked, reason)
}

// update applies fn under the lock and publishes the resulting state.
func (c *Controller) update(fn func(), reason string) {
	c.mu.Lock()
	fn()
	c.publishLocked(reason)
	c.mu.Unlock()
}

// updateAt is update for work started under epoch: fn runs only if that
// session is still current and the state is still want.
func (c *Controller) updateAt(epoch uint64, want State, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != want || c.gw.Epoch() != epoch {
		return false
	}
	fn()
	c.publishLocked("")
	return true
}

func (c *Controller) publishLocked(reason string) {
	publish(c.subs, Event{
		State:   c.state,
		Loading: c.loading,
		User:    cloneIdentity(c.user),
		Profile: cloneProfile(c.profile),
		Reason:  reason,
	})
}

// authenticatedEpoch returns the current session epoch, or
// ErrNotAuthenticated.
func (c *Controller) authenticatedEpoch() (uint64, error) {
	epoch := c.gw.Epoch()
	if c.State() != StateAuthenticated {
		return 0, ErrNotAuthenticated
	}
	return epoch, nil
}

// resetLocked must be called with c.mu held (via update).
func (c *Controller) resetLocked() {
	c.state = StateAnonymous
	c.user = nil
	c.profile = nil
}

func (c *Controller) settleAnonymousLocked() {
	c.resetLocked()
	c.loading = false
}

// persistUser stores u next to the pair of the session identified by epoch.
// It reports false if that session has ended.
func (c *Controller) persistUser(ctx context.Context, epoch uint64, u *session.Identity) bool {
	err := c.gw.UpdateSession(ctx, epoch, func(s *session.Snapshot) { s.User = u })
	switch {
	case err == nil:
		return true
	case errors.Is(err, gateway.ErrSessionEnded):
		return false
	default:
		c.log.Warn("auth.persist_user_failed", "err", err)
		return true
	}
}

func (c *Controller) clearSession(ctx context.Context, epoch uint64, reason string) {
	if err := c.gw.ClearSessionAt(ctx, epoch, reason); err != nil {
		c.log.Warn("auth.session_clear_failed", "reason", reason, "err", err)
	}
}

func checkLoginInput(in LoginInput) error {
	fields := map[string][]string{}
	if in.Username == "" && in.Email == "" {
		fields["username"] = []string{"This field is required."}
	}
	if in.Password == "" {
		fields["password"] = []string{"This field is required."}
	}
	if len(fields) == 0 {
		return nil
	}
	return &InvalidCredentialsError{Detail: FallbackLogin, Fields: fields}
}

func passwordError(err error, cfg password.Config) *ValidationError {
	var msg string
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		msg = fmt.Sprintf("This password is too short. It must contain at least %d characters.", cfg.Policy.MinLength)
	case errors.Is(err, password.ErrPasswordTooLong):
		msg = fmt.Sprintf("This password is too long. It must contain at most %d characters.", cfg.Policy.MaxLength)
	case errors.Is(err, password.ErrNumericPassword):
		msg = "This password is entirely numeric."
	case errors.Is(err, password.ErrWeakPassword):
		msg = "This password is too common."
	case errors.Is(err, password.ErrTooSimilar):
		msg = "The password is too similar to the username or email."
	default:
		msg = err.Error()
	}
	return &ValidationError{
		Detail: msg,
		Fields: map[string][]string{"password": {msg}},
		Err:    err,
	}
}

func identityFrom(u apiv1.User) *session.Identity {
	return &session.Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func cloneIdentity(u *session.Identity) *session.Identity {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func cloneProfile(p *apiv1.Profile) *apiv1.Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Package session owns the authenticated-user state machine: restoring a
// persisted session at startup, login/logout/register, and the periodic
// background validity check.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gradcert/console-client/broadcast"
	"github.com/gradcert/console-client/credstore"
	"github.com/gradcert/console-client/gateway"
	"github.com/gradcert/console-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Status is the controller's authentication state.
type Status int

const (
	Unauthenticated Status = iota
	Restoring
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ErrInvalidCredentials is returned by Login when the backend rejects the
// supplied credentials (400/401).
var ErrInvalidCredentials = errors.New("invalid credentials")

// DefaultCheckInterval is how often the background validity check runs.
const DefaultCheckInterval = 5 * time.Minute

// Notice is a user-facing message surfaced by the controller.
type Notice struct {
	Title   string
	Message string
}

// Notifier receives user-facing notices. Optional.
type Notifier func(Notice)

// LoginRequest is the credential payload for Login.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

// RegisterRequest is the payload for Register. When ProfileImage is set the
// request goes out as multipart/form-data, otherwise as JSON.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`

	ProfileImage     []byte `json:"-"`
	ProfileImageName string `json:"-"`
}

type authResponse struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    credstore.User `json:"user"`
}

// Controller orchestrates the session: it is the single writer of the
// authenticated/unauthenticated state and keeps that state in step with the
// credential store.
type Controller struct {
	store  credstore.Store
	tokens *token.Manager
	gw     *gateway.Gateway
	logout *broadcast.LogoutBroadcast

	notify   Notifier
	interval time.Duration

	mu     sync.Mutex
	status Status
	user   *credstore.User
	stop   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the notice sink.
func WithNotifier(notify Notifier) Option {
	return func(c *Controller) {
		c.notify = notify
	}
}

// WithCheckInterval sets the periodic validity check interval.
func WithCheckInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// New creates a Controller. All dependencies are required.
func New(store credstore.Store, tokens *token.Manager, gw *gateway.Gateway, logout *broadcast.LogoutBroadcast, options ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[session.New] store is required")
	}
	if tokens == nil {
		return nil, errors.New("[session.New] token manager is required")
	}
	if gw == nil {
		return nil, errors.New("[session.New] gateway is required")
	}
	if logout == nil {
		return nil, errors.New("[session.New] logout broadcast is required")
	}
	c := &Controller{
		store:    store,
		tokens:   tokens,
		gw:       gw,
		logout:   logout,
		interval: DefaultCheckInterval,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Status returns the current authentication state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsAuthenticated reports whether a user is signed in.
func (c *Controller) IsAuthenticated() bool {
	return c.Status() == Authenticated
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Controller) CurrentUser() *credstore.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	copied := *c.user
	return &copied
}

// Restore loads any persisted session and validates it: a valid token, or a
// refreshable one whose refresh succeeds, transitions to Authenticated.
// Anything else clears storage and transitions to Unauthenticated.
func (c *Controller) Restore(ctx context.Context) Status {
	c.setStatus(Restoring)

	record := c.store.Get()
	if record == nil {
		return c.becomeUnauthenticated()
	}

	validation := c.tokens.Validate()
	switch {
	case validation.Valid && !validation.NeedsRefresh:
		// Healthy token, nothing to do.
	case validation.NeedsRefresh:
		if !c.tokens.Refresh(ctx) {
			c.store.Remove()
			return c.becomeUnauthenticated()
		}
	default:
		// Malformed token: unrecoverable, do not attempt a refresh.
		c.store.Remove()
		return c.becomeUnauthenticated()
	}

	c.mu.Lock()
	c.status = Authenticated
	user := record.User
	c.user = &user
	c.mu.Unlock()
	log.Debug().Str("username", record.User.Username).Msg("session restored")
	return Authenticated
}

// Login authenticates against the backend and persists the session.
func (c *Controller) Login(ctx context.Context, usernameOrEmail, password string) (*credstore.User, error) {
	resp, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointLogin,
		gateway.WithJSONBody(LoginRequest{UsernameOrEmail: usernameOrEmail, Password: password}))
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			c.sendNotice(Notice{
				Title:   "Login Failed",
				Message: "Invalid credentials. Please check your email/username and password.",
			})
			return nil, errors.Wrap(ErrInvalidCredentials, "[Controller.Login]")
		}
		c.sendNotice(Notice{Title: "Login Failed", Message: "Login failed. Please try again."})
		return nil, errors.Wrap(err, "[Controller.Login]")
	}

	var auth authResponse
	if err := resp.Decode(&auth); err != nil {
		c.sendNotice(Notice{Title: "Login Failed", Message: "Login failed. Please try again."})
		return nil, errors.Wrap(err, "[Controller.Login] decode response")
	}

	c.store.Set(credstore.Record{
		AccessToken:  auth.Access,
		RefreshToken: auth.Refresh,
		User:         auth.User,
	})

	c.mu.Lock()
	c.status = Authenticated
	user := auth.User
	c.user = &user
	c.mu.Unlock()

	c.sendNotice(Notice{Title: "Welcome back!", Message: "Hello " + auth.User.Name})
	log.Info().Str("username", auth.User.Username).Msg("logged in")

	returned := auth.User
	return &returned, nil
}

// Logout clears the persisted session, resets refresh state, fires the
// logout broadcast, and stops the periodic check.
func (c *Controller) Logout() {
	c.StopPeriodicCheck()
	c.tokens.SecureLogout()
	c.logout.Trigger()
	c.becomeUnauthenticated()
	c.sendNotice(Notice{Title: "Logged Out", Message: "You have been successfully logged out."})
	log.Info().Msg("logged out")
}

// Register creates an account. The user is not signed in afterwards; they
// must log in explicitly.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) error {
	var opt gateway.RequestOption
	if len(req.ProfileImage) > 0 {
		filename := req.ProfileImageName
		if filename == "" {
			filename = "profile_image"
		}
		form := gateway.NewForm().
			Set("username", req.Username).
			Set("email", req.Email).
			Set("name", req.Name).
			Set("phone_number", req.PhoneNumber).
			Set("password", req.Password)
		form.AttachFile("profile_image", filename, req.ProfileImage)
		opt = gateway.WithForm(form)
	} else {
		opt = gateway.WithJSONBody(req)
	}

	if _, err := c.gw.Do(ctx, http.MethodPost, gateway.EndpointRegister, opt); err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			c.sendNotice(Notice{
				Title:   "Registration Failed",
				Message: "Please check your information and try again.",
			})
		} else {
			c.sendNotice(Notice{
				Title:   "Registration Failed",
				Message: "Registration failed. Please try again.",
			})
		}
		return errors.Wrap(err, "[Controller.Register]")
	}

	c.sendNotice(Notice{
		Title:   "Registration Successful!",
		Message: "Please check your email to verify your account.",
	})
	return nil
}

// UpdateUser replaces the cached user profile in memory and in the
// credential store. Tokens are untouched.
func (c *Controller) UpdateUser(user credstore.User) {
	c.mu.Lock()
	if c.status == Authenticated {
		copied := user
		c.user = &copied
	}
	c.mu.Unlock()
	c.store.UpdateUser(user)
}

// StartPeriodicCheck launches the background validity check. It reruns every
// check interval until the context is cancelled, StopPeriodicCheck is
// called, or authentication is lost.
func (c *Controller) StartPeriodicCheck(ctx context.Context) {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.runPeriodicCheck(ctx, stop)
}

// StopPeriodicCheck tears down the background validity check.
func (c *Controller) StopPeriodicCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) runPeriodicCheck(ctx context.Context, stop chan struct{}) {
	defer c.releaseStopHandle(stop)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if c.Status() != Authenticated {
				return
			}
			validation := c.tokens.Validate()
			if validation.Valid && !validation.NeedsRefresh {
				continue
			}
			if validation.NeedsRefresh && c.tokens.Refresh(ctx) {
				continue
			}
			c.expireSession()
			return
		}
	}
}

func (c *Controller) releaseStopHandle(stop chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == stop {
		c.stop = nil
	}
}

func (c *Controller) expireSession() {
	c.tokens.SecureLogout()
	c.logout.Trigger()
	c.becomeUnauthenticated()
	c.sendNotice(Notice{
		Title:   "Session Expired",
		Message: "Your session has expired. Please log in again.",
	})
	log.Info().Msg("session expired during periodic check")
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *Controller) becomeUnauthenticated() Status {
	c.mu.Lock()
	c.status = Unauthenticated
	c.user = nil
	c.mu.Unlock()
	return Unauthenticated
}

func (c *Controller) sendNotice(notice Notice) {
	if c.notify != nil {
		c.notify(notice)
	}
}

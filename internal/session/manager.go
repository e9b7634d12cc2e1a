package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/safekart/safekart/internal/log"
	"github.com/safekart/safekart/internal/metrics"
	"github.com/safekart/safekart/internal/platform"
	"github.com/safekart/safekart/internal/storage"
	"github.com/safekart/safekart/internal/telemetry"
)

// Operation names one session operation in logs, metrics and errors.
type Operation string

const (
	OpLogin         Operation = "login"
	OpRegister      Operation = "register"
	OpRefresh       Operation = "refresh"
	OpPasswordReset Operation = "password_reset"
	OpSignOut       Operation = "sign_out"
)

// RemoteAuth is the SafeKart auth API. *platform.Client implements it.
type RemoteAuth interface {
	Login(ctx context.Context, email, password string) (*platform.AuthResult, error)
	Register(ctx context.Context, req platform.RegisterRequest) (*platform.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	Me(ctx context.Context, token string) (*platform.User, error)
}

// Manager runs the login lifecycle against a RemoteAuth and keeps the
// result in a storage.Store. It holds no lock across operations.
type Manager struct {
	remote  RemoteAuth
	store   storage.Store
	clock   clockwork.Clock
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the clock used for token expiry checks
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records operation counts, durations and failure categories
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager. Both remote and store are required.
func NewManager(remote RemoteAuth, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		remote: remote,
		store:  store,
		clock:  clockwork.NewRealClock(),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates and, on success, persists the returned session.
// On failure the store is not touched.
func (m *Manager) Login(ctx context.Context, email, password string) Outcome {
	return m.authenticate(ctx, OpLogin, func(ctx context.Context) (*platform.AuthResult, error) {
		return m.remote.Login(ctx, email, password)
	})
}

// Register creates an account and persists the session the server issues
// for it.
func (m *Manager) Register(ctx context.Context, p RegisterParams) Outcome {
	return m.authenticate(ctx, OpRegister, func(ctx context.Context) (*platform.AuthResult, error) {
		return m.remote.Register(ctx, p.request())
	})
}

func (m *Manager) authenticate(ctx context.Context, op Operation, call func(context.Context) (*platform.AuthResult, error)) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, string(op))
	defer span.End()
	start := m.clock.Now()

	res, err := call(ctx)
	if err != nil {
		return failure(m.fail(ctx, span, op, start, classify(op, err)))
	}
	if res.Tokens.AccessToken == "" || res.User.ID == "" {
		return failure(m.fail(ctx, span, op, start, &Error{
			Op:       op,
			Category: CategoryUnknown,
			Message:  MsgUnknown,
			Cause:    fmt.Errorf("%s response carried no session", op),
		}))
	}

	s := fromUser(res.User)
	s.AccessToken = res.Tokens.AccessToken
	s.RefreshToken = res.Tokens.RefreshToken

	if err := storage.Apply(ctx, m.store, sessionBatch(&s)); err != nil {
		return failure(m.fail(ctx, span, op, start, storeError(op, err)))
	}

	m.succeed(ctx, span, op, start, "user_id", s.UserID, "token_fp", Fingerprint(s.AccessToken))
	return success(&s)
}

// Current returns the persisted session, or nil when no access token is
// stored. It never calls the server.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	token, ok, err := m.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return nil, err
	}
	if !ok || token == "" {
		return nil, nil
	}

	s := &Session{AccessToken: token}
	for key, dst := range map[string]*string{
		KeyUserID:    &s.UserID,
		KeyUserEmail: &s.Email,
		KeyUserRole:  &s.Role,
	} {
		if *dst, _, err = m.store.Get(ctx, key); err != nil {
			return nil, err
		}
	}
	for key, dst := range map[string]**string{
		KeyRefreshToken: &s.RefreshToken,
		KeyUserPhone:    &s.Phone,
		KeyUserFullName: &s.FullName,
	} {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			*dst = &v
		}
	}
	return s, nil
}

// IsLoggedIn reports whether a session is stored. Store errors count as
// logged out.
func (m *Manager) IsLoggedIn(ctx context.Context) bool {
	s, err := m.Current(ctx)
	return err == nil && s != nil
}

// RefreshCurrentUser fetches the profile for the stored token and
// overwrites the cached identity fields. Fields the server leaves out keep
// their cached values and tokens are left as they are. A profile without a
// user id fails with CategoryUnknown and leaves the store untouched.
// Without a stored token, or with a JWT that has already expired, it fails
// with CategorySessionExpired and makes no request.
func (m *Manager) RefreshCurrentUser(ctx context.Context) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, string(OpRefresh))
	defer span.End()
	start := m.clock.Now()

	current, err := m.Current(ctx)
	if err != nil {
		return failure(m.fail(ctx, span, OpRefresh, start, storeError(OpRefresh, err)))
	}
	if current == nil {
		return failure(m.fail(ctx, span, OpRefresh, start, &Error{
			Op:       OpRefresh,
			Category: CategorySessionExpired,
			Message:  MsgLoginRequired,
		}))
	}
	if tokenExpired(current.AccessToken, m.clock.Now()) {
		return failure(m.fail(ctx, span, OpRefresh, start, &Error{
			Op:       OpRefresh,
			Category: CategorySessionExpired,
			Message:  MsgSessionExpired,
		}))
	}

	user, err := m.remote.Me(ctx, current.AccessToken)
	if err != nil {
		return failure(m.fail(ctx, span, OpRefresh, start, classify(OpRefresh, err)))
	}

	if user == nil || user.ID == "" {
		return failure(m.fail(ctx, span, OpRefresh, start, &Error{
			Op:       OpRefresh,
			Category: CategoryUnknown,
			Message:  MsgUnknown,
			Cause:    fmt.Errorf("%s response carried no user", OpRefresh),
		}))
	}

	s := mergeProfile(current, *user)
	if err := storage.Apply(ctx, m.store, identityBatch(&s)); err != nil {
		return failure(m.fail(ctx, span, OpRefresh, start, storeError(OpRefresh, err)))
	}

	m.succeed(ctx, span, OpRefresh, start, "user_id", s.UserID)
	return success(&s)
}

// SendPasswordReset asks the server to email a reset link. It returns nil
// or a *Error and never touches the store.
func (m *Manager) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := telemetry.StartSessionSpan(ctx, string(OpPasswordReset))
	defer span.End()
	start := m.clock.Now()

	if err := m.remote.ForgotPassword(ctx, email); err != nil {
		return m.fail(ctx, span, OpPasswordReset, start, classify(OpPasswordReset, err))
	}

	m.succeed(ctx, span, OpPasswordReset, start)
	return nil
}

// SignOut removes every persisted key, even when the stored session can no
// longer be read. Signing out twice is fine.
func (m *Manager) SignOut(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, string(OpSignOut))
	defer span.End()
	start := m.clock.Now()

	if err := storage.Clear(ctx, m.store, Keys); err != nil {
		return m.fail(ctx, span, OpSignOut, start, storeError(OpSignOut, err))
	}

	m.succeed(ctx, span, OpSignOut, start)
	return nil
}

func (m *Manager) succeed(ctx context.Context, span trace.Span, op Operation, start time.Time, args ...any) {
	m.metrics.RecordAuthOperation(string(op), m.clock.Since(start), "")
	telemetry.RecordSuccess(span)
	m.logger.InfoContext(ctx, string(op)+" succeeded", args...)
}

func (m *Manager) fail(ctx context.Context, span trace.Span, op Operation, start time.Time, e *Error) *Error {
	m.metrics.RecordAuthOperation(string(op), m.clock.Since(start), e.Category.String())
	telemetry.RecordError(span, e, attribute.String("session.category", e.Category.String()))
	m.logger.WithError(e).WarnContext(ctx, string(op)+" failed")
	return e
}

// storeError wraps a storage failure. The cause keeps its own code so the
// CLI can report it as a store problem.
func storeError(op Operation, err error) *Error {
	return &Error{Op: op, Category: CategoryUnknown, Message: MsgUnknown, Cause: err}
}

// sessionBatch writes a full session, clearing optional keys the new
// session does not have.
func sessionBatch(s *Session) storage.Batch {
	b := identityBatch(s)
	b.Puts[KeyAuthToken] = s.AccessToken
	if s.RefreshToken != nil {
		b.Puts[KeyRefreshToken] = *s.RefreshToken
	} else {
		b.Removes = append(b.Removes, KeyRefreshToken)
	}
	return b
}

// identityBatch writes the cached profile fields only.
func identityBatch(s *Session) storage.Batch {
	b := storage.Batch{
		Puts: map[string]string{
			KeyUserID:    s.UserID,
			KeyUserEmail: s.Email,
			KeyUserRole:  s.Role,
		},
	}
	for key, v := range map[string]*string{
		KeyUserPhone:    s.Phone,
		KeyUserFullName: s.FullName,
	} {
		if v != nil {
			b.Puts[key] = *v
		} else {
			b.Removes = append(b.Removes, key)
		}
	}
	return b
}

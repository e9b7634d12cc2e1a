package devserver

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/safekart/safekart/internal/platform"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownUser        = errors.New("user not found")
)

type account struct {
	user platform.User
	hash []byte
}

// Directory is an in-memory user table keyed by lowercased email.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[string]*account
	cost    int
	clock   clockwork.Clock
}

// NewDirectory creates an empty directory hashing passwords with the given bcrypt cost.
func NewDirectory(cost int, clock clockwork.Clock) *Directory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{
		byEmail: make(map[string]*account),
		byID:    make(map[string]*account),
		cost:    cost,
		clock:   clock,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create adds an account. A missing full name defaults to the part of the
// email before the @.
func (d *Directory) Create(req platform.RegisterRequest) (platform.User, error) {
	email := normalizeEmail(req.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return platform.User{}, err
	}

	fullName := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		fullName = email[:at]
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) != "" {
		fullName = strings.TrimSpace(*req.FullName)
	}
	role := req.Role
	if role == "" {
		role = platform.RoleCustomer
	}
	now := d.clock.Now().UTC().Format(time.RFC3339)

	acc := &account{
		user: platform.User{
			ID:        uuid.NewString(),
			Email:     email,
			FullName:  &fullName,
			Phone:     req.Phone,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		},
		hash: hash,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byEmail[email]; exists {
		return platform.User{}, ErrEmailTaken
	}
	d.byEmail[email] = acc
	d.byID[acc.user.ID] = acc
	return acc.user, nil
}

// Authenticate returns the account for email when password matches.
func (d *Directory) Authenticate(email, password string) (platform.User, error) {
	d.mu.RLock()
	acc, ok := d.byEmail[normalizeEmail(email)]
	d.mu.RUnlock()
	if !ok {
		return platform.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return platform.User{}, ErrInvalidCredentials
	}
	return acc.user, nil
}

// Lookup returns the account with the given id.
func (d *Directory) Lookup(id string) (platform.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok {
		return platform.User{}, ErrUnknownUser
	}
	return acc.user, nil
}

// Exists reports whether an account uses email.
func (d *Directory) Exists(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byEmail[normalizeEmail(email)]
	return ok
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

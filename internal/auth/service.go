package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrJamesThe3rd/pharmacy/internal/apperr"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=auth
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}

type Service struct {
	repo     Repository
	secret   []byte
	ttl      time.Duration
	hashCost int
	now      func() time.Time
	log      logrus.FieldLogger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost sets the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(repo Repository, secret string, ttl time.Duration, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		secret:   []byte(secret),
		ttl:      ttl,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		log:      log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login checks the credentials and returns a signed token for the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}

	if err != nil {
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("user_id", u.ID).Info("Rejected login")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.Issue(u)
	if err != nil {
		return "", nil, err
	}

	return token, u, nil
}

func (s *Service) Issue(u *User) (string, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return token, nil
}

// Parse verifies a token and returns the principal it names.
func (s *Service) Parse(token string) (Principal, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: malformed claims", ErrUnauthorized)
	}

	return Principal{UserID: id, Role: claims.Role}, nil
}

// EnsureUser creates the user unless one with the same email exists.
func (s *Service) EnsureUser(ctx context.Context, email, password string, role Role) (*User, error) {
	email = normalizeEmail(email)

	errs := apperr.FieldErrors{}
	if email == "" || !strings.Contains(email, "@") {
		errs["email"] = "must be a valid email address"
	}

	if len(password) < 8 {
		errs["password"] = "must be at least 8 characters"
	}

	if !role.Valid() {
		errs["role"] = "unknown role"
	}

	if len(errs) > 0 {
		return nil, errs
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}

	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u = &User{Email: email, PasswordHash: string(hash), Role: role}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("Created user")

	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

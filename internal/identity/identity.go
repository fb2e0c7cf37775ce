// Package identity resolves who is acting: registered owners carry signed
// session tokens, guests get anonymous sessions created on demand.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"punchd/pkg/requestcontext"
)

// Service issues and validates session tokens. It replaces the original
// process-wide auth singleton with an explicitly constructed dependency
// threaded into the backends.
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	lazy *requestcontext.OwnerSession
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL overrides the default session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs an identity Service.
func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key is required")
	}
	svc := &Service{
		signingKey: signingKey,
		tokenTTL:   30 * 24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Anonymous   bool   `json:"anon"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// SignInAnonymously creates a fresh guest session and its token.
func (s *Service) SignInAnonymously(ctx context.Context) (requestcontext.OwnerSession, string, error) {
	sess := requestcontext.OwnerSession{
		OwnerID:   uuid.NewString(),
		Anonymous: true,
	}
	token, err := s.IssueToken(ctx, sess)
	if err != nil {
		return requestcontext.OwnerSession{}, "", err
	}
	s.logger.InfoContext(ctx, "anonymous session created", "owner_id", sess.OwnerID)
	return sess, token, nil
}

// EnsureSession returns the caller's session, creating an anonymous one when
// the context carries none. This is the remote backend's
// "ensure-authenticated" side effect. At most one anonymous session is
// created per service: without the cache, each store call on a session-less
// guest would mint a new owner and their records would scatter across owners.
func (s *Service) EnsureSession(ctx context.Context) (requestcontext.OwnerSession, error) {
	if sess, ok := requestcontext.Session(ctx); ok && sess.OwnerID != "" {
		return sess, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lazy != nil {
		return *s.lazy, nil
	}
	sess, _, err := s.SignInAnonymously(ctx)
	if err != nil {
		return requestcontext.OwnerSession{}, err
	}
	s.lazy = &sess
	return sess, nil
}

// IssueToken signs a session token for the given session.
func (s *Service) IssueToken(ctx context.Context, sess requestcontext.OwnerSession) (string, error) {
	now := requestcontext.Now(ctx)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.OwnerID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Anonymous:   sess.Anonymous,
		DisplayName: sess.DisplayName,
		Email:       sess.Email,
		Phone:       sess.Phone,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ValidateToken parses a session token and returns the session it carries.
func (s *Service) ValidateToken(tokenString string) (requestcontext.OwnerSession, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return requestcontext.OwnerSession{}, fmt.Errorf("parse session token: %w", err)
	}
	return requestcontext.OwnerSession{
		OwnerID:     claims.Subject,
		Anonymous:   claims.Anonymous,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Phone:       claims.Phone,
	}, nil
}

// DisplayLabel picks the best human-readable label for a session, falling
// back to "Guest" the way the original profile screen did.
func DisplayLabel(sess requestcontext.OwnerSession) string {
	switch {
	case sess.DisplayName != "":
		return sess.DisplayName
	case sess.Email != "":
		return sess.Email
	case sess.Phone != "":
		return sess.Phone
	default:
		return "Guest"
	}
}

package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/mealshare-backend/pkg/config"
	redisclient "github.com/angelmondragon/mealshare-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AddMember(ctx context.Context, key, member string, ttl time.Duration) error
	RemoveMembers(ctx context.Context, key string, members ...string) error
	Members(ctx context.Context, key string) ([]string, error)
	SessionKey(accessID string) string
	UserSessionsKey(userID string) string
}

// Manager owns refresh sessions. Each session is keyed by the jti of the
// access token it was issued with and stores "<user id>|<refresh token>";
// a per-user set indexes the live jtis so a user can sign out everywhere.
type Manager struct {
	store store
	ttl   time.Duration
}

// AccessSessionChecker is what the auth middleware needs to reject access
// tokens whose session was revoked.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(s store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if access := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errAccessIDRequired
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.open(ctx, userID, accessID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Rotation is the result of a successful refresh.
type Rotation struct {
	UserID       uuid.UUID
	AccessID     string
	RefreshToken string
}

// Rotate swaps the session behind oldAccessID for a new one. A refresh token
// works exactly once.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (Rotation, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return Rotation{}, ErrInvalidRefreshToken
	}
	userID, token, err := m.load(ctx, oldAccessID)
	if err != nil {
		return Rotation{}, err
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
		return Rotation{}, ErrInvalidRefreshToken
	}

	next := Rotation{UserID: userID, AccessID: NewAccessID()}
	if next.RefreshToken, err = newRefreshToken(); err != nil {
		return Rotation{}, err
	}
	if err := m.open(ctx, userID, next.AccessID, next.RefreshToken); err != nil {
		return Rotation{}, err
	}
	if err := m.close(ctx, userID, oldAccessID); err != nil {
		return Rotation{}, err
	}
	return next, nil
}

// Revoke ends the session behind accessID. Unknown sessions are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	userID, _, err := m.load(ctx, accessID)
	if errors.Is(err, ErrInvalidRefreshToken) {
		return m.store.Del(ctx, m.store.SessionKey(accessID))
	}
	if err != nil {
		return err
	}
	return m.close(ctx, userID, accessID)
}

// RevokeAll ends every session userID holds and reports how many there were.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, errors.New("user id is required")
	}
	index := m.store.UserSessionsKey(userID.String())
	accessIDs, err := m.store.Members(ctx, index)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	keys := make([]string, 0, len(accessIDs)+1)
	for _, id := range accessIDs {
		keys = append(keys, m.store.SessionKey(id))
	}
	keys = append(keys, index)
	if err := m.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return len(accessIDs), nil
}

// HasSession reports whether accessID still has a live session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.SessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) open(ctx context.Context, userID uuid.UUID, accessID, token string) error {
	value := userID.String() + "|" + token
	if err := m.store.Set(ctx, m.store.SessionKey(accessID), value, m.ttl); err != nil {
		return err
	}
	return m.store.AddMember(ctx, m.store.UserSessionsKey(userID.String()), accessID, m.ttl)
}

func (m *Manager) close(ctx context.Context, userID uuid.UUID, accessID string) error {
	if err := m.store.Del(ctx, m.store.SessionKey(accessID)); err != nil {
		return err
	}
	return m.store.RemoveMembers(ctx, m.store.UserSessionsKey(userID.String()), accessID)
}

// load returns ErrInvalidRefreshToken for a missing or unreadable session.
func (m *Manager) load(ctx context.Context, accessID string) (uuid.UUID, string, error) {
	stored, err := m.store.Get(ctx, m.store.SessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return uuid.Nil, "", ErrInvalidRefreshToken
	}
	if err != nil {
		return uuid.Nil, "", err
	}
	rawID, token, found := strings.Cut(stored, "|")
	if !found || token == "" {
		return uuid.Nil, "", ErrInvalidRefreshToken
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", ErrInvalidRefreshToken
	}
	return userID, token, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

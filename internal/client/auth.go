package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenStore persists the bearer token between requests.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates a store seeded with token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.Save("")
}

// FileTokenStore keeps the token in a JSON file guarded by a lock file, so
// several CLI processes can share one session.
type FileTokenStore struct {
	path string
	lock *flock.Flock
}

type tokenFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// NewFileTokenStore creates a store backed by path. The file is created on first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path, lock: flock.New(path + ".lock")}
}

func (s *FileTokenStore) Load() (string, error) {
	if !s.dirExists() {
		return "", nil
	}
	if err := s.lock.RLock(); err != nil {
		return "", fmt.Errorf("locking token file: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parsing token file: %w", err)
	}
	return tf.Token, nil
}

func (s *FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking token file: %w", err)
	}
	defer s.lock.Unlock()

	data, err := json.Marshal(tokenFile{Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	if !s.dirExists() {
		return nil
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking token file: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) dirExists() bool {
	_, err := os.Stat(filepath.Dir(s.path))
	return err == nil
}

// AuthManager supplies bearer tokens and handles forced sign-out.
type AuthManager struct {
	store  TokenStore
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	hooks []func()
}

// NewAuthManager creates a manager over store. A nil logger disables logging.
func NewAuthManager(store TokenStore, logger *zap.Logger) *AuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{store: store, logger: logger.Named("auth"), now: time.Now}
}

// Token returns the current token, or "" when signed out. A JWT whose exp
// claim has passed signs the session out and yields ErrSessionExpired.
func (am *AuthManager) Token(ctx context.Context) (string, error) {
	token, err := am.store.Load()
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}

	if exp, ok := jwtExpiry(token); ok && !am.now().Before(exp) {
		am.logger.Info("session token expired", zap.Time("expired_at", exp))
		if err := am.SignOut(ctx); err != nil {
			am.logger.Warn("sign-out after expiry failed", zap.Error(err))
		}
		return "", ErrSessionExpired
	}
	return token, nil
}

// SetToken stores a new session token.
func (am *AuthManager) SetToken(token string) error {
	return am.store.Save(token)
}

// OnSignOut registers a hook run after every sign-out.
func (am *AuthManager) OnSignOut(fn func()) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.hooks = append(am.hooks, fn)
}

// SignOut clears the stored token and runs the sign-out hooks.
func (am *AuthManager) SignOut(_ context.Context) error {
	err := am.store.Clear()

	am.mu.Lock()
	hooks := append([]func(){}, am.hooks...)
	am.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// IsAuthenticated returns true when a non-expired token is stored.
func (am *AuthManager) IsAuthenticated() bool {
	token, err := am.store.Load()
	if err != nil || strings.TrimSpace(token) == "" {
		return false
	}
	if exp, ok := jwtExpiry(token); ok {
		return am.now().Before(exp)
	}
	return true
}

// jwtExpiry reads the exp claim without verifying the signature.
func jwtExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

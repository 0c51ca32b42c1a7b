package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"recipe-share-backend/internal/apperror"
	"recipe-share-backend/internal/models"
	"recipe-share-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CollectionIdentities holds credentials, keyed by normalized email
const CollectionIdentities = "identities"

// SessionObserver is notified when a user signs in or out
type SessionObserver interface {
	SessionChanged(event models.SessionEvent)
}

// ObserverFunc adapts a function to SessionObserver
type ObserverFunc func(event models.SessionEvent)

func (f ObserverFunc) SessionChanged(event models.SessionEvent) { f(event) }

// Session is returned on register and login
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type identity struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// Gateway wraps sign-up, sign-in and sign-out and answers "who is the current user"
type Gateway struct {
	store     repository.DocumentStore
	users     *repository.UserRepository
	tokens    *TokenService
	passwords *PasswordService
	sessions  SessionRegistry
	now       func() time.Time

	mu        sync.RWMutex
	observers map[int]SessionObserver
	nextObsID int

	dummyOnce sync.Once
	dummyHash string
}

// NewGateway creates an identity gateway
func NewGateway(
	store repository.DocumentStore,
	users *repository.UserRepository,
	tokens *TokenService,
	passwords *PasswordService,
	sessions SessionRegistry,
) *Gateway {
	return &Gateway{
		store:     store,
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		sessions:  sessions,
		now:       time.Now,
		observers: make(map[int]SessionObserver),
	}
}

// Register creates an identity, then its user document with admin=false, and signs the user in.
// If the user document write fails the identity is kept.
func (g *Gateway) Register(ctx context.Context, email, password, username, fullName, location string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.Auth("weak-password",
			fmt.Sprintf("Password should be at least %d characters", MinPasswordLength))
	}

	hash, err := g.passwords.Hash(password)
	if err != nil {
		return nil, apperror.Auth("weak-password", err.Error())
	}

	uid := uuid.New().String()
	err = g.store.Create(ctx, CollectionIdentities, email, map[string]any{
		"uid":          uid,
		"email":        email,
		"passwordHash": hash,
		"createdAt":    repository.ServerTimestamp,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Auth("email-already-in-use", "The email address is already in use by another account")
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	user := &models.User{
		ID:       uid,
		Email:    email,
		Username: strings.TrimSpace(username),
		FullName: strings.TrimSpace(fullName),
		Location: strings.TrimSpace(location),
		Admin:    false,
	}
	if err := g.users.Create(ctx, user); err != nil {
		log.Error().
			Err(err).
			Str("user_id", uid).
			Msg("Identity created but user document write failed")
		return nil, err
	}

	log.Info().Str("user_id", uid).Msg("User registered")

	return g.startSession(ctx, user)
}

// Login verifies credentials and opens a session
func (g *Gateway) Login(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	doc, err := g.store.Get(ctx, CollectionIdentities, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// unknown emails pay for one bcrypt compare like known ones
			_ = g.passwords.Verify(g.unknownUserHash(), password)
			return nil, invalidCredential()
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	var id identity
	if err := doc.DataTo(&id); err != nil {
		return nil, apperror.Store("failed to load identity", err)
	}

	if err := g.passwords.Verify(id.PasswordHash, password); err != nil {
		if errors.Is(err, errPasswordMismatch) {
			return nil, invalidCredential()
		}
		return nil, err
	}

	user, err := g.users.GetByID(ctx, id.UID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		// registration stopped between identity and user document
		log.Warn().Str("user_id", id.UID).Msg("Signed in user has no user document")
		user = &models.User{ID: id.UID, Email: id.Email}
	}

	return g.startSession(ctx, user)
}

// Logout revokes the session behind token. Unknown, expired or already revoked tokens are fine.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil
	}
	existed, err := g.sessions.Delete(ctx, claims.ID)
	if err != nil {
		return apperror.Store("failed to end session", err)
	}
	if existed {
		log.Info().Str("user_id", claims.UserID).Msg("User signed out")
		g.notify(models.SessionEvent{
			Kind:      models.SignedOut,
			UserID:    claims.UserID,
			SessionID: claims.ID,
			At:        g.now(),
		})
	}
	return nil
}

// Authenticate returns the user ID of a live session token
func (g *Gateway) Authenticate(ctx context.Context, token string) (string, error) {
	userID, _, err := g.AuthenticateSession(ctx, token)
	return userID, err
}

// AuthenticateSession returns the user ID and session ID of a live session token
func (g *Gateway) AuthenticateSession(ctx context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", apperror.Auth("unauthenticated", "Please log in")
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return "", "", apperror.Auth("invalid-token", "Invalid or expired token")
	}
	userID, ok, err := g.sessions.Get(ctx, claims.ID)
	if err != nil {
		return "", "", apperror.Store("failed to check session", err)
	}
	if !ok || userID != claims.UserID {
		return "", "", apperror.Auth("session-ended", "Session has ended, please log in again")
	}
	return userID, claims.ID, nil
}

// CurrentUser returns the user of the session token carried by ctx, or nil when signed out
func (g *Gateway) CurrentUser(ctx context.Context) (*models.User, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		return nil, nil
	}
	userID, err := g.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrAuth) {
			return nil, nil
		}
		return nil, err
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &models.User{ID: userID}, nil
		}
		return nil, err
	}
	return user, nil
}

// Subscribe registers an observer of session changes. The returned func unsubscribes.
func (g *Gateway) Subscribe(observer SessionObserver) func() {
	g.mu.Lock()
	id := g.nextObsID
	g.nextObsID++
	g.observers[id] = observer
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.observers, id)
		g.mu.Unlock()
	}
}

func (g *Gateway) startSession(ctx context.Context, user *models.User) (*Session, error) {
	token, claims, err := g.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := g.sessions.Put(ctx, claims.ID, user.ID, g.tokens.TTL()); err != nil {
		return nil, apperror.Store("failed to start session", err)
	}

	g.notify(models.SessionEvent{
		Kind:      models.SignedIn,
		UserID:    user.ID,
		SessionID: claims.ID,
		At:        g.now(),
	})

	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

func (g *Gateway) notify(event models.SessionEvent) {
	g.mu.RLock()
	observers := make([]SessionObserver, 0, len(g.observers))
	for _, o := range g.observers {
		observers = append(observers, o)
	}
	g.mu.RUnlock()

	for _, o := range observers {
		o.SessionChanged(event)
	}
}

func (g *Gateway) unknownUserHash() string {
	g.dummyOnce.Do(func() {
		hash, err := g.passwords.Hash(uuid.New().String())
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash placeholder password")
			return
		}
		g.dummyHash = hash
	})
	return g.dummyHash
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.Auth("invalid-email", "The email address is badly formatted")
	}
	return email, nil
}

func invalidCredential() error {
	return apperror.Auth("invalid-credential", "Invalid email or password")
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's session token
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts the session token, or ""
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

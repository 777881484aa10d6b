package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

const (
	DefaultSessionTTL = 12 * time.Hour
	ResetTokenTTL     = 30 * time.Minute
	MinPasswordLength = 6
)

// Account is a stored credential in the accounts collection.
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"passwordHash"`
	ResetNonce   string `json:"resetNonce"`
	CreatedAt    string `json:"createdAt"`
}

// NewAccount is the input for creating a credential.
type NewAccount struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Identity signs users in against the accounts collection and issues
// session and password reset tokens.
type Identity struct {
	store  store.Store
	jwt    JWTConfig
	clock  func() time.Time
	logger zerolog.Logger
	cost   int
}

func NewIdentity(s store.Store, cfg JWTConfig, logger zerolog.Logger) *Identity {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &Identity{store: s, jwt: cfg, clock: time.Now, logger: logger, cost: bcrypt.DefaultCost}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (id *Identity) findByEmail(ctx context.Context, email string) (*Account, error) {
	recs, err := id.store.GetWhere(ctx, store.Accounts, store.Where("email", store.Eq, normalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.ErrNotFound
	}
	var a Account
	if err := store.Decode(recs[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SignIn checks the credentials and routes the account's role to a
// dashboard. A correct password on an account whose role has no dashboard
// returns apperr.ErrUnknownRole.
func (id *Identity) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Required("email")
	}
	if password == "" {
		return nil, apperr.Required("password")
	}
	a, err := id.findByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		id.logger.Error().Err(err).Msg("sign-in lookup failed")
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	dash, err := Route(a.Role)
	if err != nil {
		id.logger.Warn().Str("user_id", a.ID).Str("role", a.Role).Msg("sign-in for role without dashboard")
		return nil, err
	}

	now := id.clock()
	exp := now.Add(id.jwt.TTL)
	token, err := id.jwt.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    id.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	id.logger.Info().Str("user_id", a.ID).Str("dashboard", string(dash)).Msg("signed in")
	return &Session{
		UserID:    a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Dashboard: dash,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// AccountOp validates a new account and returns the insert that creates it,
// so callers can commit it in the same transaction as related records.
func (id *Identity) AccountOp(ctx context.Context, in NewAccount) (store.AddOp, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return store.AddOp{}, apperr.Required("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return store.AddOp{}, apperr.Invalid("email", "is not a valid address")
	}
	if strings.TrimSpace(in.Role) == "" {
		return store.AddOp{}, apperr.Required("role")
	}
	if len(in.Password) < MinPasswordLength {
		return store.AddOp{}, apperr.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	if _, err := id.findByEmail(ctx, email); err == nil {
		return store.AddOp{}, apperr.Invalid("email", "is already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return store.AddOp{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), id.cost)
	if err != nil {
		return store.AddOp{}, fmt.Errorf("hash password: %w", err)
	}
	return store.AddOp{
		Collection: store.Accounts,
		ID:         store.NewID(),
		Fields: store.F(
			"email", email,
			"name", strings.TrimSpace(in.Name),
			"role", strings.TrimSpace(in.Role),
			"passwordHash", string(hash),
		),
	}, nil
}

// CreateAccount stores a new credential and returns its id.
func (id *Identity) CreateAccount(ctx context.Context, in NewAccount) (string, error) {
	op, err := id.AccountOp(ctx, in)
	if err != nil {
		return "", err
	}
	if err := id.store.Transact(ctx, op); err != nil {
		id.logger.Error().Err(err).Str("email", in.Email).Msg("create account failed")
		return "", err
	}
	if _, routed := CanonicalRole(in.Role); !routed {
		id.logger.Warn().Str("role", in.Role).Msg("account created for role without dashboard")
	}
	return op.ID, nil
}

// ResetPassword issues a single-use reset token valid for ResetTokenTTL.
// Unknown addresses return an empty token and no error so the endpoint does
// not reveal which addresses are registered.
func (id *Identity) ResetPassword(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", apperr.Required("email")
	}
	a, err := id.findByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		id.logger.Info().Msg("password reset requested for unknown address")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	nonce := store.NewID()
	now := id.clock()
	token, err := id.jwt.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Subject:   a.ID,
			Issuer:    id.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ResetTokenTTL)),
		},
		Email:   a.Email,
		Purpose: purposeReset,
	})
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	if err := id.store.Update(ctx, store.Accounts, a.ID, store.F("resetNonce", nonce)); err != nil {
		id.logger.Error().Err(err).Str("user_id", a.ID).Msg("store reset nonce failed")
		return "", err
	}
	return token, nil
}

// CompleteReset sets a new password using a token from ResetPassword. The
// token is consumed.
func (id *Identity) CompleteReset(ctx context.Context, token, password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	claims, err := id.jwt.parse(token, purposeReset)
	if err != nil {
		return apperr.Invalid("token", "is invalid or expired")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), id.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = id.store.Transact(ctx, store.MutateOp{
		Collection: store.Accounts,
		ID:         claims.Subject,
		Apply: func(r *store.Record) error {
			if claims.ID == "" || r.Fields.String("resetNonce") != claims.ID {
				return apperr.Invalid("token", "has already been used")
			}
			r.Fields.Set("passwordHash", string(hash))
			r.Fields.Set("resetNonce", "")
			return nil
		},
	})
	if err != nil {
		return err
	}
	id.logger.Info().Str("user_id", claims.Subject).Msg("password reset completed")
	return nil
}

// Verify parses a session token outside of the HTTP middleware.
func (id *Identity) Verify(token string) (*Session, error) {
	claims, err := id.jwt.parse(token, purposeSession)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	return sessionFromClaims(claims, token)
}

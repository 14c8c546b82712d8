package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
)

// ErrInvalidToken marks a device token that failed verification: malformed,
// expired, tampered, or signed with a different secret.
var ErrInvalidToken = errors.New("invalid device token")

// Identity is the outcome of resolving a device token. Created reports
// whether a fresh anonymous identity was minted for this call.
type Identity struct {
	UserID  uuid.UUID
	Token   string
	Created bool
}

// Resolver turns an optional device token into a stable user identifier.
// Identities are anonymous: there is no registration, no credentials, just
// a signed token binding a device to a uuid.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
	Verify(token string) (uuid.UUID, error)
}

type deviceClaims struct {
	jwt.RegisteredClaims
}

type jwtResolver struct {
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

func NewResolver(secretKey string, tokenTTL time.Duration, baseLog *logger.Logger) (Resolver, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("identity: secret key is empty")
	}
	return &jwtResolver{
		secret: []byte(secretKey),
		ttl:    tokenTTL,
		log:    baseLog.With("service", "IdentityResolver"),
	}, nil
}

// Resolve implements the resolution contract: an empty token mints a new
// anonymous identity, a valid token echoes its subject back, anything else
// fails with ErrInvalidToken so the caller can decide how to degrade.
func (r *jwtResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		userID := uuid.New()
		signed, err := r.mint(userID)
		if err != nil {
			return Identity{}, fmt.Errorf("mint device token: %w", err)
		}
		r.log.Info("minted anonymous identity", "user_id", userID.String())
		return Identity{UserID: userID, Token: signed, Created: true}, nil
	}
	userID, err := r.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Token: token}, nil
}

func (r *jwtResolver) Verify(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &deviceClaims{}, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*deviceClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %v", ErrInvalidToken, err)
	}
	return userID, nil
}

func (r *jwtResolver) mint(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := deviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if r.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(r.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

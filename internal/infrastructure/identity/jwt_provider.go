package identity

import (
	"context"
	"errors"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload issued by the external account service.
type Claims struct {
	UserID   domain.UserID       `json:"user_id"`
	Username string              `json:"username"`
	Role     domain.IdentityRole `json:"role"`
	jwt.RegisteredClaims
}

// Directory resolves full identities for verified principals.
type Directory interface {
	GetIdentity(ctx context.Context, id domain.UserID) (*domain.Identity, error)
}

// JWTProvider verifies HS256 credentials locally and resolves identities
// through the backing directory. Token issuance is owned by the external
// account service; only verification happens here.
type JWTProvider struct {
	secret    []byte
	directory Directory
}

func NewJWTProvider(secret string, directory Directory) ports.IdentityProvider {
	return &JWTProvider{secret: []byte(secret), directory: directory}
}

func (p *JWTProvider) VerifyCredential(ctx context.Context, token string) (*ports.Principal, error) {
	if token == "" {
		return nil, domain.ErrCredentialMissing
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrCredentialInvalid
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrCredentialExpired
		}
		return nil, domain.ErrCredentialInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrCredentialInvalid
	}

	return &ports.Principal{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}

func (p *JWTProvider) GetIdentity(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	return p.directory.GetIdentity(ctx, id)
}

// IssueToken signs a credential for the given principal. Exists for local
// development and tests; production tokens come from the account service.
func IssueToken(secret string, userID domain.UserID, username string, role domain.IdentityRole, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

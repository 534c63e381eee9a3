package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("jwt-manager")

const issuer = "maker-orchestrator"

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// subject checks.
var ErrInvalidToken = errors.New("invalid download token")

// JWTManager signs and checks job-scoped download tokens
type JWTManager struct {
	signingKey []byte
	algorithm  string
	keyID      string
	tracer     trace.Tracer
}

// Claims represents the claims of a download token
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const downloadScope = "artifacts:read"

// NewJWTManager creates a manager that signs with secret
func NewJWTManager(secret string) (*JWTManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &JWTManager{
		signingKey: []byte(secret),
		algorithm:  "HS256",
		keyID:      "default",
		tracer:     tracer,
	}, nil
}

// IssueDownloadToken signs a token for jobID that expires with the job
func (jm *JWTManager) IssueDownloadToken(jobID string, expiresAt time.Time) (string, error) {
	_, span := jm.tracer.Start(context.Background(), "jwt.issue_download_token")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	now := time.Now()
	claims := &Claims{
		Scope: downloadScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   jobID,
		},
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(jm.algorithm), claims)
	token.Header["kid"] = jm.keyID

	tokenString, err := token.SignedString(jm.signingKey)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateDownloadToken checks the signature, expiry, scope and that the
// token was issued for jobID
func (jm *JWTManager) ValidateDownloadToken(ctx context.Context, tokenString, jobID string) (*Claims, error) {
	_, span := jm.tracer.Start(ctx, "jwt.validate_download_token")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jm.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jm.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithSubject(jobID), jwt.WithExpirationRequired())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != downloadScope {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokensEqual compares two tokens in constant time
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

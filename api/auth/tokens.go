package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
)

const (
	// RefreshTokenTTL is the lifetime of a refresh token
	RefreshTokenTTL   = 30 * 24 * time.Hour
	refreshTokenBytes = 40
)

// AccessClaims are the claims carried by an access token
type AccessClaims struct {
	Kind  models.PrincipalKind `json:"kind"`
	Email string               `json:"email"`
	Role  string               `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService mints and checks access and refresh tokens
type TokenService struct {
	Tokens    databases.RefreshTokenDatabase
	secret    []byte
	accessTTL time.Duration
	Now       func() time.Time
}

// NewTokenService returns a TokenService signing with secret
func NewTokenService(tokens databases.RefreshTokenDatabase, secret string, accessTTL time.Duration) *TokenService {
	return &TokenService{
		Tokens:    tokens,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// AccessTTL returns the configured access token lifetime
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken signs an HS256 JWT for p
func (s *TokenService) IssueAccessToken(p models.Principal) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}
	now := s.Now()
	claims := AccessClaims{
		Kind:  p.Kind,
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseAccessToken verifies signature and expiry and returns the principal
func (s *TokenService) ParseAccessToken(token string) (models.Principal, error) {
	p, _, err := s.VerifyAccessToken(token)
	return p, err
}

// VerifyAccessToken is ParseAccessToken that also returns the token expiry
func (s *TokenService) VerifyAccessToken(token string) (models.Principal, time.Time, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.Now), jwt.WithExpirationRequired())
	if err != nil {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Kind.Valid() {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, claims.Kind)
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return models.Principal{Kind: claims.Kind, ID: id, Email: claims.Email, Role: claims.Role}, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken stores and returns a new opaque refresh token
func (s *TokenService) IssueRefreshToken(ctx context.Context, ownerID primitive.ObjectID, ownerType models.PrincipalKind, device models.DeviceInfo) (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	token := hex.EncodeToString(b)
	now := s.Now()

	_, err := s.Tokens.InsertOne(ctx, models.RefreshToken{
		Token:     token,
		OwnerID:   ownerID,
		OwnerType: ownerType,
		ExpiresAt: now.Add(RefreshTokenTTL),
		IsActive:  true,
		LastUsed:  now,
		Device:    device,
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	metrics.RefreshTokens.WithLabelValues("issued").Inc()
	return token, nil
}

// ValidateRefreshToken returns the stored token when it is active and unexpired, and
// records the use.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	now := s.Now()
	rt, err := s.Tokens.FindOne(ctx, bson.M{
		"token":     token,
		"isActive":  true,
		"expiresAt": bson.M{"$gt": now},
	})
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			metrics.RefreshTokens.WithLabelValues("rejected").Inc()
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	// the query filter already excludes these, but a stale read must not validate
	if !rt.Usable(now) {
		metrics.RefreshTokens.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidToken
	}

	if _, err := s.Tokens.UpdateOne(ctx, bson.M{"_id": rt.ID}, bson.M{"$set": bson.M{"lastUsed": now}}); err != nil {
		zap.S().Warnw("failed to touch refresh token", "tokenId", rt.ID.Hex(), "error", err)
	}
	rt.LastUsed = now
	metrics.RefreshTokens.WithLabelValues("refreshed").Inc()
	return rt, nil
}

// RevokeRefreshToken deactivates a single token
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.Tokens.UpdateOne(ctx, bson.M{"token": token}, bson.M{"$set": bson.M{"isActive": false}})
	if err == nil {
		metrics.RefreshTokens.WithLabelValues("revoked").Inc()
	}
	return err
}

// RevokeAll deactivates every token of an owner and returns how many changed
func (s *TokenService) RevokeAll(ctx context.Context, ownerID primitive.ObjectID, ownerType models.PrincipalKind) (int64, error) {
	res, err := s.Tokens.UpdateMany(ctx,
		bson.M{"ownerId": ownerID, "ownerType": ownerType, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false}})
	if err != nil {
		return 0, err
	}
	metrics.RefreshTokens.WithLabelValues("revoked").Add(float64(res.ModifiedCount))
	return res.ModifiedCount, nil
}

// Cleanup deletes expired and revoked tokens
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	return s.Tokens.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"expiresAt": bson.M{"$lte": s.Now()}},
		{"isActive": false},
	}})
}

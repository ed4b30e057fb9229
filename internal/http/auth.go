package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KebabObama/school-reservation/internal/application"
)

// TokenVerifier resolves a bearer token into the calling principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (application.Principal, error)
}

// JWTVerifier accepts HS256 tokens carrying a "sub" claim with the user id
// and an optional boolean "admin" claim.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier builds a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify validates the signature and expiry of raw and returns its principal.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (application.Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", application.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return application.Principal{}, application.ErrUnauthorized
	}

	var userID string
	switch sub := claims["sub"].(type) {
	case string:
		userID = strings.TrimSpace(sub)
	case float64:
		userID = strconv.FormatFloat(sub, 'f', -1, 64)
	}
	if userID == "" {
		return application.Principal{}, fmt.Errorf("%w: token has no subject", application.ErrUnauthorized)
	}

	admin, _ := claims["admin"].(bool)
	return application.Principal{UserID: userID, IsAdmin: admin}, nil
}

// SignToken mints an HS256 token for principal that expires after ttl.
// A non-positive ttl produces a token without expiry.
func SignToken(secret string, principal application.Principal, ttl time.Duration) (string, error) {
	if principal.UserID == "" {
		return "", errors.New("http: principal has no user id")
	}
	claims := jwt.MapClaims{
		"sub":   principal.UserID,
		"admin": principal.IsAdmin,
		"iat":   time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

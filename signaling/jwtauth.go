package signaling

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by SessionVerifier.Verify.
var (
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrExpiredSessionToken = errors.New("session token has expired")
	ErrShortSigningSecret  = errors.New("signing secret must be at least 32 characters")
)

// SessionClaims is the set of claims this client expects the signaling
// server to embed in a bearer session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	AppID  string `json:"appId,omitempty"`
}

// SessionVerifier verifies bearer session tokens handed out by the
// signaling server's browser-based auth flow, so a caller can confirm a
// token is genuine before handing it to AuthPayload.Token.
type SessionVerifier struct {
	secret []byte
	issuer string
}

// NewSessionVerifier builds a SessionVerifier. secret is the HMAC key
// shared with the signaling server; issuer, if non-empty, is checked
// against the token's iss claim.
func NewSessionVerifier(secret, issuer string) (*SessionVerifier, error) {
	if len(secret) < 32 {
		return nil, ErrShortSigningSecret
	}
	return &SessionVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates tokenString, returning its claims.
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, ErrInvalidSessionToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

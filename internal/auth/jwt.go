package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "ordero"

// Token purposes. A magic-link code must never be accepted as a session,
// and a session must never be exchanged as a magic link.
const (
	PurposeSession   = "session"
	PurposeMagicLink = "magic_link"
)

// Claims is the payload of a session token.
//
// Business and role are deliberately absent: a user can belong to several
// businesses, and roles are resolved from memberships per request so that
// removing a manager takes effect immediately.
//
// EmailVerified is true only when the account's address was proven by a
// magic link before the token was issued.
type Claims struct {
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Purpose       string    `json:"purpose"`
	jwt.RegisteredClaims
}

// MagicClaims is the payload of the code inside an invite e-mail. Holding
// the code proves control of Email.
type MagicClaims struct {
	Email    string    `json:"email"`
	InviteID uuid.UUID `json:"invite_id"`
	Purpose  string    `json:"purpose"`
	jwt.RegisteredClaims
}

func registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		// ID (jti) is what logout revokes and what makes magic codes single-use.
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
	}
}

// GenerateToken creates a signed HS256 session token for a user.
func GenerateToken(userID uuid.UUID, email string, emailVerified bool, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:           userID,
		Email:            email,
		EmailVerified:    emailVerified,
		Purpose:          PurposeSession,
		RegisteredClaims: registered(time.Now(), ttl),
	}
	return sign(claims, secret)
}

// GenerateMagicCode creates the code carried by an invite link.
func GenerateMagicCode(email string, inviteID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	claims := MagicClaims{
		Email:            email,
		InviteID:         inviteID,
		Purpose:          PurposeMagicLink,
		RegisteredClaims: registered(time.Now(), ttl),
	}
	return sign(claims, secret)
}

func sign(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and extracts the claims.
//
// It verifies the signature, expiry, issuer, signing method (HMAC only,
// which blocks algorithm-switching attacks) and purpose.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, secret, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeSession {
		return nil, fmt.Errorf("invalid token purpose %q", claims.Purpose)
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}

// ParseMagicCode validates a magic-link code.
func ParseMagicCode(code, secret string) (*MagicClaims, error) {
	claims := &MagicClaims{}
	if err := parse(code, secret, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeMagicLink {
		return nil, fmt.Errorf("invalid code purpose %q", claims.Purpose)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("code has no email")
	}
	return claims, nil
}

func parse(tokenString, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token claims")
	}
	return nil
}

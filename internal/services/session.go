package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/projectplus/apiserver/types"
)

const defaultTokenTTL = 48 * time.Hour

var errInvalidToken = errors.New("invalid token")

type sessionClaims struct {
	types.Claims
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for user.
func (t *TokenIssuer) Issue(user types.User) (string, error) {
	now := t.now()
	claims := sessionClaims{
		Claims: types.Claims{
			UserID:     user.ID,
			CharusatID: user.CharusatID,
			Role:       user.Role,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies a token and returns its identity claims.
func (t *TokenIssuer) Parse(tokenString string) (types.Claims, error) {
	claims := sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return types.Claims{}, err
	}
	if !token.Valid {
		return types.Claims{}, errInvalidToken
	}
	if claims.UserID < 1 || strings.TrimSpace(claims.CharusatID) == "" {
		return types.Claims{}, errInvalidToken
	}
	return claims.Claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

var (
	mu        sync.RWMutex
	jwtSecret []byte
)

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// InitJWT sets the HMAC key used to sign and verify tokens.
func InitJWT(secret string) {
	mu.Lock()
	jwtSecret = []byte(secret)
	mu.Unlock()
}

func secret() ([]byte, error) {
	mu.RLock()
	defer mu.RUnlock()
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret not initialised")
	}
	return jwtSecret, nil
}

// GenerateToken issues a token for username valid for expireSeconds.
func GenerateToken(username string, expireSeconds int) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireSeconds) * time.Second)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "orgsetup",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func ParseToken(tokenString string) (*Claims, error) {
	key, err := secret()
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

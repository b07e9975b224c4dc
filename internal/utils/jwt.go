package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims carries the user id under "id", the claim name the storefront client reads.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret   []byte
	userTTL  time.Duration
	adminTTL time.Duration
	now      func() time.Time
}

func NewTokenService(secret []byte, userTTL, adminTTL time.Duration) *TokenService {
	return &TokenService{secret: secret, userTTL: userTTL, adminTTL: adminTTL, now: time.Now}
}

func (s *TokenService) GenerateUserToken(userID string) (string, error) {
	return s.generate(userID, s.userTTL)
}

func (s *TokenService) GenerateAdminToken(userID string) (string, error) {
	return s.generate(userID, s.adminTTL)
}

func (s *TokenService) generate(userID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies the signature and expiry and returns the user id.
// Failures are ErrTokenExpired or ErrTokenInvalid.
func (s *TokenService) Parse(tokenString string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing id claim", ErrTokenInvalid)
	}
	return claims.ID, nil
}

package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims carries the owner identity that scopes every document and query.
type Claims struct {
	OwnerID string `json:"user_id"`
	jwtlib.RegisteredClaims
}

func GenerateToken(ownerID string, secret []byte, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", errors.New("owner id is required")
	}
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   ownerID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.OwnerID == "" {
		claims.OwnerID = claims.Subject
	}
	if claims.OwnerID == "" {
		return nil, errors.New("token has no owner")
	}
	return claims, nil
}

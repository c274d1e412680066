package authUtils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Roles carried in user tokens.
const (
	RoleCitizen = "citizen"
	RoleOfficer = "officer"
)

// InternalServiceRole is the role claim expected by the classification backend.
const InternalServiceRole = "INTERNAL_SERVICE"

// UserClaims is the identity extracted from a verified bearer token.
type UserClaims struct {
	UserID string
	Role   string
}

// GenerateAndSetToken generates a JWT token for a given user ID and role. This service
// only verifies user tokens; the login service that issues them shares JWT_SECRET and
// must produce exactly these claims (user_id, role, exp). ParseUserToken is the other
// half of that contract and tests mint tokens through here to stay in step with it.
func GenerateAndSetToken(secret, userID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret is not set")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

// ParseUserToken verifies an HS256 token and extracts the user claims.
func ParseUserToken(secret, tokenString string) (UserClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return UserClaims{}, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return UserClaims{}, fmt.Errorf("invalid token claims")
	}

	userID, exists := claims["user_id"]
	if !exists {
		return UserClaims{}, fmt.Errorf("token has no user_id claim")
	}

	out := UserClaims{UserID: fmt.Sprint(userID), Role: RoleCitizen}
	if role, ok := claims["role"].(string); ok && role != "" {
		out.Role = role
	}
	return out, nil
}

// GenerateInternalToken mints a short-lived service-to-service token. A fresh token is
// minted for every outbound call.
func GenerateInternalToken(secret, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("internal JWT secret is not set")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": InternalServiceRole,
		"iss":  issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})

	return token.SignedString([]byte(secret))
}

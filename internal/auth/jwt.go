package auth

import (
	"crypto/rsa"
	"errors"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the service needs from a verified token.
type Claims struct {
	Subject string
	Role    string
}

// JWTVerifier verifies RS256 JWT tokens issued by the auth service.
type JWTVerifier struct {
	pub *rsa.PublicKey
}

func NewJWTVerifier(pubPath string) (*JWTVerifier, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifierFromKey(pub), nil
}

func NewJWTVerifierFromKey(pub *rsa.PublicKey) *JWTVerifier {
	return &JWTVerifier{pub: pub}
}

func (j *JWTVerifier) VerifyToken(token string) (*Claims, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.pub, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, errors.New("invalid token")
	}
	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	c := &Claims{}
	// try common claim keys
	for _, k := range []string{"user_id", "user_uuid", "sub"} {
		if v, ok := mc[k].(string); ok && v != "" {
			c.Subject = v
			break
		}
	}
	if c.Subject == "" {
		return nil, errors.New("user id not found in token")
	}
	c.Role, _ = mc["role"].(string)
	return c, nil
}

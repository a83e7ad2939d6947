package codec

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformed        = errors.New("code is malformed")
	ErrSignatureInvalid = errors.New("code signature is invalid")
	ErrEmptySecret      = errors.New("signing secret is empty")
)

// Claims is the payload of an authorization code or access token.
type Claims struct {
	Me                  string `json:"me"`
	ClientID            string `json:"client_id,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`
	Scope               string `json:"scope,omitempty"`
	Resource            string `json:"resource,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the claims are past their expiry at now. Claims
// without an expiry never expire.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}

type Codec struct {
	secret []byte
	parser *jwt.Parser
}

// Issue signs claims with HMAC-SHA256. A random jti is assigned when the
// claims carry none, so two codes for the same request never collide.
func (c *Codec) Issue(claims Claims) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrEmptySecret
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature of code and returns its claims. Expiry is not
// enforced here; callers compare Claims.Expired against their own clock.
func (c *Codec) Verify(code string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, ErrEmptySecret
	}
	var claims Claims
	_, err := c.parser.ParseWithClaims(code, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSignatureInvalid
		}
		return c.secret, nil
	})
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrSignatureInvalid):
		return nil, ErrSignatureInvalid
	default:
		return nil, ErrMalformed
	}
}

func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func Issue(claims Claims, secret string) (string, error) {
	return NewCodec(secret).Issue(claims)
}

func Verify(code, secret string) (*Claims, error) {
	return NewCodec(secret).Verify(code)
}

// Package auth は外部IDプロバイダーが発行したセッショントークンの検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken はトークンが検証できない場合に返される。
var ErrInvalidToken = errors.New("invalid token")

// Identity は検証済みトークンから得た利用者情報。
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Verifier はトークン検証のインターフェース。ミドルウェアが使用する。
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// TokenVerifier はHS256で署名されたJWTを共有シークレットで検証する。
type TokenVerifier struct {
	key      []byte
	audience string
	skew     time.Duration
}

// NewTokenVerifier はTokenVerifierを生成する。audienceが空の場合はaudを検証しない。
func NewTokenVerifier(secret, audience string) *TokenVerifier {
	return &TokenVerifier{
		key:      []byte(secret),
		audience: audience,
		skew:     30 * time.Second,
	}
}

// Verify は署名、有効期限、audienceを検証し、subjectを利用者IDとして返す。
func (v *TokenVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithContext(ctx),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.Parse([]byte(rawToken), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Identity{
		UserID: tok.Subject(),
		Email:  stringClaim(tok, "email"),
		Role:   stringClaim(tok, "role"),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// compile-time interface check
var _ Verifier = (*TokenVerifier)(nil)

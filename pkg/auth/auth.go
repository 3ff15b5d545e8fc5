package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"practice-controlplane/pkg/config"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"
)

var Module = fx.Module("auth", fx.Provide(ProvideVerifier))

var (
	ErrMissingSecret = errors.New("jwt signing secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims are the portal claims carried next to the registered ones.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	Subject  string
	TenantID string
	Roles    []string
}

type Verifier struct {
	secret []byte
	issuer string
}

func ProvideVerifier(cfg *config.Config) (*Verifier, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), nil
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Verify(token string) (*Principal, error) {
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(v.secret, &registered, &custom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: v.issuer,
		Time:   time.Now(),
	}, 30*time.Second); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Principal{
		Subject:  registered.Subject,
		TenantID: custom.TenantID,
		Roles:    custom.Roles,
	}, nil
}

// Issue signs a token for subject. Used by seatctl and tests; production tokens come from the identity provider.
func (v *Verifier) Issue(subject string, claims Claims, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: v.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := time.Now()
	registered := jwt.Claims{
		Issuer:   v.issuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

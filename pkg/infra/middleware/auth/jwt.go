package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	jwtopts "github.com/kart-io/retrieval-x/pkg/options/jwt"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// Verifier checks HMAC-signed bearer tokens and yields their subject.
type Verifier struct {
	key      []byte
	method   jwt.SigningMethod
	issuer   string
	audience []string
	leeway   time.Duration
	now      func() time.Time
}

// NewVerifier creates a Verifier from JWT options.
func NewVerifier(opts *jwtopts.Options) (*Verifier, error) {
	method := jwt.GetSigningMethod(opts.SigningMethod)
	if method == nil || !jwtopts.SupportedSigningMethods[opts.SigningMethod] {
		return nil, fmt.Errorf("unsupported signing method: %s", opts.SigningMethod)
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("jwt key is required")
	}
	return &Verifier{
		key:      []byte(opts.Key),
		method:   method,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
		now:      time.Now,
	}, nil
}

// Verify parses tokenString and returns its sub claim.
// Time claims are checked with the configured leeway.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.ErrUnauthorized.WithMessage("missing authentication token")
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return "", mapParseError(err)
	}

	now := v.now()
	if !claims.VerifyExpiresAt(now.Add(-v.leeway), false) {
		return "", errors.ErrInvalidToken.WithMessage("token has expired")
	}
	if !claims.VerifyNotBefore(now.Add(v.leeway), false) {
		return "", errors.ErrInvalidToken.WithMessage("token is not valid yet")
	}
	if !claims.VerifyIssuedAt(now.Add(v.leeway), false) {
		return "", errors.ErrInvalidToken.WithMessage("token used before issued")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", errors.ErrInvalidToken.WithMessage("invalid token issuer")
	}
	if len(v.audience) > 0 && !audienceMatches(claims, v.audience) {
		return "", errors.ErrInvalidToken.WithMessage("invalid token audience")
	}
	if claims.Subject == "" {
		return "", errors.ErrInvalidToken.WithMessage("token has no subject")
	}
	return claims.Subject, nil
}

func audienceMatches(claims *jwt.RegisteredClaims, accepted []string) bool {
	for _, aud := range accepted {
		if claims.VerifyAudience(aud, true) {
			return true
		}
	}
	return false
}

func mapParseError(err error) error {
	var ve *jwt.ValidationError
	if stderrors.As(err, &ve) && ve.Errors&jwt.ValidationErrorMalformed != 0 {
		return errors.ErrInvalidToken.WithMessage("malformed token").WithCause(err)
	}
	return errors.ErrInvalidToken.WithCause(err)
}

// Sign issues a token for subject valid for ttl. It is used by tooling and
// tests that need a token matching the server's configuration.
func (v *Verifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if len(v.audience) > 0 {
		claims.Audience = jwt.ClaimStrings(v.audience)
	}
	return jwt.NewWithClaims(v.method, claims).SignedString(v.key)
}

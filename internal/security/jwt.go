package security

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity asserted by the upstream identity provider.
// MemberOf holds the raw directory group names the subject belongs to;
// they are decoded into roles and affiliations per request.
type Claims struct {
	MemberOf []string `json:"memberOf"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret      []byte
	issuer      string
	audience    string
	groupsClaim string
}

func NewJWTManager(secret, issuer, audience, groupsClaim string) *JWTManager {
	return &JWTManager{
		secret:      []byte(secret),
		issuer:      issuer,
		audience:    audience,
		groupsClaim: groupsClaim,
	}
}

func (m *JWTManager) ParseAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if m.groupsClaim != "memberOf" {
		groups, err := extractGroupsClaim(token, m.groupsClaim)
		if err != nil {
			return nil, err
		}
		claims.MemberOf = groups
	}
	return claims, nil
}

// IssueAccessToken exists for tests and local tooling; production tokens
// come from the upstream identity provider.
func (m *JWTManager) IssueAccessToken(subject string, memberOf []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		MemberOf: memberOf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func extractGroupsClaim(token *jwt.Token, name string) ([]string, error) {
	mapClaims, err := rawClaims(token)
	if err != nil {
		return nil, err
	}
	v, ok := mapClaims[name]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: claim %q is not a list", ErrInvalidToken, name)
	}
	groups := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: claim %q contains a non-string entry", ErrInvalidToken, name)
		}
		groups = append(groups, s)
	}
	return groups, nil
}

func rawClaims(token *jwt.Token) (jwt.MapClaims, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token.Raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return mapClaims, nil
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

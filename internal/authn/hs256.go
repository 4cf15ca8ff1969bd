package authn

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopmindai/chat-core/internal/apperr"
	"github.com/shopmindai/chat-core/internal/domain"
)

// HS256Verifier is the default JWT_VERIFY_MODE=hs256 adapter. A JWKS
// mode would satisfy the same TokenVerifier port with an RS256/RSA
// lookup; no such adapter exists, and cmd/server exits on any mode other
// than hs256.
type HS256Verifier struct {
	Secret []byte
}

func NewHS256Verifier(secret string) *HS256Verifier {
	return &HS256Verifier{Secret: []byte(secret)}
}

type claims struct {
	jwt.RegisteredClaims
	Kind      string   `json:"kind"`
	SubjectID int64    `json:"subject_id"`
	Roles     []string `json:"roles"`
}

func (v *HS256Verifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Principal{}, apperr.Forbidden("invalid or expired token")
	}
	kind := domain.PrincipalKind(c.Kind)
	if kind != domain.KindUser && kind != domain.KindAdmin {
		return domain.Principal{}, apperr.Validation("unknown principal kind in token")
	}
	return domain.Principal{Kind: kind, SubjectID: c.SubjectID, Roles: c.Roles}, nil
}

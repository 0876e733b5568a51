package auth

import (
	"fmt"

	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// PrincipalFromIDToken reads the account claims of an OIDC id_token.
//
// The token arrives straight from the token endpoint over TLS, so the signature is not re-verified.
func PrincipalFromIDToken(raw string) (*models.Principal, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: invalid id_token: %v", shared.ErrAuthFailed, err)
	}

	p := &models.Principal{
		AccountID:   claim(claims, "oid", "sub"),
		Username:    claim(claims, "preferred_username", "email", "upn"),
		DisplayName: claim(claims, "name"),
		TenantID:    claim(claims, "tid"),
	}
	if p.AccountID == "" {
		return nil, fmt.Errorf("%w: id_token has no subject", shared.ErrAuthFailed)
	}
	return p, nil
}

// claim returns the first non-empty string claim among keys.
func claim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

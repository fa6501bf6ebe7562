package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "unit-secret", Issuer: "markit"}

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims AccessTokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func registered(issuer string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func TestParseAccessTokenClient(t *testing.T) {
	clientID := uuid.New()
	token := sign(t, testCfg.Secret, jwt.SigningMethodHS256, AccessTokenClaims{
		ClientID:         &clientID,
		Role:             enums.RoleClient,
		RegisteredClaims: registered("markit", time.Hour),
	})

	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ClientID == nil || *claims.ClientID != clientID {
		t.Fatalf("unexpected client id %v", claims.ClientID)
	}
	if got := claims.SubjectID(); got == nil || *got != clientID {
		t.Fatalf("subject should be the client id, got %v", got)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	partnerID := uuid.New()
	companyID := uuid.New()

	cases := map[string]string{
		"wrong secret": sign(t, "other", jwt.SigningMethodHS256, AccessTokenClaims{
			DeliveryPartnerID: &partnerID,
			Role:              enums.RoleDeliveryPartner,
			RegisteredClaims:  registered("markit", time.Hour),
		}),
		"expired": sign(t, testCfg.Secret, jwt.SigningMethodHS256, AccessTokenClaims{
			DeliveryPartnerID: &partnerID,
			Role:              enums.RoleDeliveryPartner,
			RegisteredClaims:  registered("markit", -time.Minute),
		}),
		"wrong issuer": sign(t, testCfg.Secret, jwt.SigningMethodHS256, AccessTokenClaims{
			CompanyID:        &companyID,
			Role:             enums.RoleCompany,
			RegisteredClaims: registered("someone-else", time.Hour),
		}),
		"wrong algorithm": sign(t, testCfg.Secret, jwt.SigningMethodHS512, AccessTokenClaims{
			CompanyID:        &companyID,
			Role:             enums.RoleCompany,
			RegisteredClaims: registered("markit", time.Hour),
		}),
		"unknown role": sign(t, testCfg.Secret, jwt.SigningMethodHS256, AccessTokenClaims{
			CompanyID:        &companyID,
			Role:             enums.Role("admin"),
			RegisteredClaims: registered("markit", time.Hour),
		}),
		"missing subject": sign(t, testCfg.Secret, jwt.SigningMethodHS256, AccessTokenClaims{
			CompanyID:        &companyID,
			Role:             enums.RoleClient,
			RegisteredClaims: registered("markit", time.Hour),
		}),
		"garbage": "not-a-jwt",
	}

	for name, token := range cases {
		if _, err := ParseAccessToken(testCfg, token); err == nil {
			t.Fatalf("%s: expected parse to fail", name)
		}
	}
}

func TestParseAccessTokenRequiresSecret(t *testing.T) {
	if _, err := ParseAccessToken(config.JWTConfig{}, "x"); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

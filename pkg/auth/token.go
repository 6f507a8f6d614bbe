// Copyright 2025 Mangwale
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// tokenTTL is how long an issued session auth token stays valid before
// the client must re-authenticate.
const tokenTTL = 24 * time.Hour

// TokenIssuer signs the session auth token handed back to the client
// after a successful login. It is the issuance side for this system's
// own first-party session tokens, built
// with the same jwx/v2 stack.
type TokenIssuer struct {
	key      jwk.Key
	issuer   string
	audience string
}

// NewTokenIssuer wraps a raw HMAC secret as a jwx signing key. secret
// must be non-empty; callers load it from config (internal/config),
// never hardcode it.
func NewTokenIssuer(secret []byte, issuer, audience string) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth: token signing secret must not be empty")
	}
	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("auth: build signing key: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.HS256); err != nil {
		return nil, fmt.Errorf("auth: set key algorithm: %w", err)
	}
	return &TokenIssuer{key: key, issuer: issuer, audience: audience}, nil
}

// Issue mints a signed session token for profile, valid for tokenTTL.
func (i *TokenIssuer) Issue(profile Profile) (string, error) {
	jti, err := randomJTI()
	if err != nil {
		return "", fmt.Errorf("auth: generate jti: %w", err)
	}

	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer(i.issuer).
		Audience([]string{i.audience}).
		Subject(fmt.Sprintf("%d", profile.UserID)).
		JwtID(jti).
		IssuedAt(now).
		Expiration(now.Add(tokenTTL)).
		Claim("phone", profile.Phone)

	if profile.Name != "" {
		builder = builder.Claim("name", profile.Name)
	}
	if profile.Email != "" {
		builder = builder.Claim("email", profile.Email)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("auth: build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), nil
}

// Verify parses and validates a token issued by Issue, returning the
// embedded user ID.
func (i *TokenIssuer) Verify(tokenString string) (int64, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	var userID int64
	if _, err := fmt.Sscanf(token.Subject(), "%d", &userID); err != nil {
		return 0, fmt.Errorf("auth: token subject is not a user id: %w", err)
	}
	return userID, nil
}

func randomJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", buf), nil
}

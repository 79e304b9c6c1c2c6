// Copyright 2024 Rational Boxes
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

// Package authtoken signs and verifies the bearer token a transport
// layer presents to the core as an AuthenticationContext. The RPC
// transport itself is an external collaborator (spec.md §1); this
// package only covers the contract the core relies on to recover
// {user, roles, tenant} from a token.
package authtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rational-Boxes/file-engine-core-sub001/pkg/errtypes"
)

// Context is the AuthenticationContext carried by every RPC per spec §6.
type Context struct {
	User   string   `json:"user"`
	Roles  []string `json:"roles"`
	Tenant string   `json:"tenant"`
}

type claims struct {
	Context
	jwt.RegisteredClaims
}

// Signer issues and verifies bearer tokens with a single shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner builds a Signer. A zero ttl disables expiry.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl}
}

// Sign issues a token encoding ctx.
func (s *Signer) Sign(ctx Context) (string, error) {
	c := claims{Context: ctx}
	if s.ttl > 0 {
		c.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", errtypes.Internal(err.Error())
	}
	return signed, nil
}

// Verify parses and validates a token, returning its AuthenticationContext.
func (s *Signer) Verify(token string) (Context, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Context{}, errtypes.PermissionDenied("invalid or expired token")
	}
	return c.Context, nil
}

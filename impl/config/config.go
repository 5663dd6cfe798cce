// Copyright 2016 Google Inc. All Rights Reserved.
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

// Package config loads the process-wide secrets described in spec.md §6
// ("Configuration (environment)") into an immutable record: the server's
// OPRF scalar, the MAC key, and the DB signing key. Keys are stretched from
// operator-supplied strings via PBKDF2-HMAC-SHA256, the way
// core/crypto/tinkio.MasterPBKDF turns a master password into a
// fixed-length AEAD key.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/voprfscan/voprfscan/core/curve"
)

// Environment variable names, per spec.md §6.
const (
	EnvOPRFKey      = "SERVER_OPRF_KEY"
	EnvMACSecret    = "MAC_SECRET"
	EnvDBSigningKey = "DB_SIGNING_KEY"
)

// Development-only placeholder defaults. spec.md §9 is explicit that these
// must never reach production; LoadServerSecrets only falls back to them
// when the corresponding environment variable is unset.
const (
	DevMACSecret    = "dev-only-mac-secret-do-not-ship"
	DevDBSigningKey = "dev-only-db-signing-key-do-not-ship"
)

const (
	derivedKeyLen    = 32
	pbkdf2Iterations = 4096
)

// Distinct salts per derived key, so MAC_SECRET and DB_SIGNING_KEY never
// collide even if an operator reuses the same string for both.
var (
	macSalt, _ = hex.DecodeString("3f1c9a2e7b5d4081a6c3e9f02b7d4815c9e6a3f08b1d4720f5a8e3c6b9d2041a")
	dbSalt, _  = hex.DecodeString("7a4e1c9f2b8d5036a1c7e4f9b2d58036e4a1c8f5b9d2074a3e6c1f8b5d290473")
)

// ErrMissingOPRFKey occurs when SERVER_OPRF_KEY is required but unset.
var ErrMissingOPRFKey = errors.New("config: SERVER_OPRF_KEY is required")

// ServerSecrets is the server's immutable process-wide secret state,
// modeled as an explicit record per spec.md §9 rather than ambient globals.
type ServerSecrets struct {
	OPRFKey      *big.Int
	PublicKey    curve.Point
	MACKey       []byte
	DBSigningKey []byte
}

// LoadServerSecrets reads SERVER_OPRF_KEY, MAC_SECRET, and DB_SIGNING_KEY
// from the environment. When requireOPRFKey is true (production), a missing
// or malformed SERVER_OPRF_KEY is fatal; an unset MAC_SECRET or
// DB_SIGNING_KEY always falls back to its documented development
// placeholder, which the caller should log loudly.
func LoadServerSecrets(requireOPRFKey bool) (ServerSecrets, error) {
	oprfDecimal, ok := os.LookupEnv(EnvOPRFKey)
	if !ok || oprfDecimal == "" {
		if requireOPRFKey {
			return ServerSecrets{}, ErrMissingOPRFKey
		}
		oprfDecimal = "1"
	}
	k, err := ParseOPRFKey(oprfDecimal)
	if err != nil {
		return ServerSecrets{}, err
	}

	macSecret := os.Getenv(EnvMACSecret)
	if macSecret == "" {
		macSecret = DevMACSecret
	}
	dbSecret := os.Getenv(EnvDBSigningKey)
	if dbSecret == "" {
		dbSecret = DevDBSigningKey
	}

	return ServerSecrets{
		OPRFKey:      k,
		PublicKey:    curve.G().Mul(k),
		MACKey:       deriveKey(macSecret, macSalt),
		DBSigningKey: deriveKey(dbSecret, dbSalt),
	}, nil
}

// LoadClientSecrets reads MAC_SECRET and DB_SIGNING_KEY for a trusted
// client process that shares them with the server out of band (spec.md
// §4.5's documented trust requirement), without needing SERVER_OPRF_KEY.
func LoadClientSecrets() (macKey, dbSigningKey []byte) {
	macSecret := os.Getenv(EnvMACSecret)
	if macSecret == "" {
		macSecret = DevMACSecret
	}
	dbSecret := os.Getenv(EnvDBSigningKey)
	if dbSecret == "" {
		dbSecret = DevDBSigningKey
	}
	return deriveKey(macSecret, macSalt), deriveKey(dbSecret, dbSalt)
}

// ParseOPRFKey parses SERVER_OPRF_KEY's decimal-string scalar and checks it
// lies in [1, n), the valid range for a nonzero P-256 scalar.
func ParseOPRFKey(decimal string) (*big.Int, error) {
	k, ok := new(big.Int).SetString(decimal, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid decimal scalar", EnvOPRFKey)
	}
	if k.Sign() <= 0 || k.Cmp(curve.N) >= 0 {
		return nil, fmt.Errorf("config: %s out of range [1, n)", EnvOPRFKey)
	}
	return k, nil
}

// deriveKey stretches an operator-supplied secret into a fixed-length HMAC
// key via PBKDF2-HMAC-SHA256, the way tinkio.MasterPBKDF stretches a master
// password into an AEAD key.
func deriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)
}

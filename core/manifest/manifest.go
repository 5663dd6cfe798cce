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

// Package manifest signs and verifies the evaluated-hash database: a
// content hash, a keyed signature over that hash, a timestamp, and a
// version string, binding content, freshness, and provenance together.
package manifest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// MaxAge bounds how old an admitted manifest may be, limiting rollback
// attacks against the database.
const MaxAge = 30 * 24 * time.Hour

var (
	// ErrHashMismatch occurs when the manifest's hash does not match the
	// current database bytes.
	ErrHashMismatch = errors.New("manifest: database hash mismatch")
	// ErrSigMismatch occurs when the manifest's signature fails to verify.
	ErrSigMismatch = errors.New("manifest: signature mismatch")
	// ErrExpired occurs when the manifest is older than MaxAge.
	ErrExpired = errors.New("manifest: expired")
)

// Manifest describes a signed snapshot of the evaluated-hash database.
type Manifest struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// Generate produces a signed manifest for dbBytes, offline, using
// signingKey and the given version label.
func Generate(signingKey, dbBytes []byte, version string, now time.Time) Manifest {
	h := sha256.Sum256(dbBytes)
	hashHex := hex.EncodeToString(h[:])
	ts := now.UnixMilli()
	sig := sign(signingKey, hashHex, ts, version)
	return Manifest{
		Hash:      hashHex,
		Signature: sig,
		Timestamp: ts,
		Version:   version,
	}
}

// Verify re-derives the hash of dbBytes and the signature over the
// manifest, and checks the manifest has not expired. Only a manifest that
// passes Verify may be admitted to the match engine.
func Verify(signingKey, dbBytes []byte, m Manifest, now time.Time) error {
	h := sha256.Sum256(dbBytes)
	if hex.EncodeToString(h[:]) != m.Hash {
		return ErrHashMismatch
	}
	want := sign(signingKey, m.Hash, m.Timestamp, m.Version)
	if !hmac.Equal([]byte(want), []byte(m.Signature)) {
		return ErrSigMismatch
	}
	age := now.UnixMilli() - m.Timestamp
	if age > MaxAge.Milliseconds() {
		return ErrExpired
	}
	return nil
}

// sign computes HMAC-SHA256(signingKey, hash || ":" || decimal(ts) || ":" || version).
func sign(signingKey []byte, hashHex string, ts int64, version string) string {
	m := hmac.New(sha256.New, signingKey)
	m.Write([]byte(hashHex))
	m.Write([]byte(":"))
	fmt.Fprintf(m, "%d", ts)
	m.Write([]byte(":"))
	m.Write([]byte(version))
	return hex.EncodeToString(m.Sum(nil))
}

// Copyright 2018 Google Inc. All Rights Reserved.
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

// Package vault encrypts scan results at rest under a session-scoped
// AES-256-GCM key built on Tink's AEAD primitive, the way
// core/crypto/tinkio builds a tink.AEAD from a derived master key.
package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/tink/go/aead/subtle"
	"github.com/google/tink/go/tink"
)

const (
	// KeyLen is the size, in bytes, of a session vault key.
	KeyLen = 32
	ivLen  = 12
)

var (
	// ErrAuthFailure occurs when GCM authentication fails on decrypt.
	ErrAuthFailure = errors.New("vault: authentication failure")
	// ErrCorruptBlob occurs when an encrypted result's wire fields are
	// structurally invalid (not base64, wrong IV length, etc).
	ErrCorruptBlob = errors.New("vault: corrupt blob")
)

// EncryptedResult is the at-rest representation of a scan outcome.
type EncryptedResult struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Timestamp  int64  `json:"timestamp"`
}

// Session holds a single session-scoped AEAD key. The key is never written
// to durable storage; callers are responsible for keeping it only in
// volatile storage for the lifetime of the session.
type Session struct {
	aead tink.AEAD
}

// NewSession builds a vault session from an existing 32-byte key, the path
// taken when a prior session's key was successfully loaded from its
// well-known slot.
func NewSession(key []byte) (*Session, error) {
	aead, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	return &Session{aead: aead}, nil
}

// NewRandomSession generates a fresh CSPRNG session key, the path taken
// when no usable key was found in the session's well-known slot.
func NewRandomSession() (*Session, []byte, error) {
	key := make([]byte, KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, err
	}
	s, err := NewSession(key)
	if err != nil {
		return nil, nil, err
	}
	return s, key, nil
}

// Encrypt serializes obj as canonical JSON and seals it under Tink's
// AES-GCM subtle AEAD, which prepends a fresh random 12-byte nonce to its
// output ahead of the ciphertext and 16-byte tag. That nonce is split back
// out into EncryptedResult.IV so the wire format carries ciphertext and IV
// as separate fields per the envelope contract; associated data is empty.
func (s *Session) Encrypt(obj interface{}) (EncryptedResult, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return EncryptedResult{}, err
	}
	// Re-encode through a generic value so object keys come out sorted at
	// every level; UseNumber keeps numbers exactly as first encoded.
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return EncryptedResult{}, err
	}
	plaintext, err := json.Marshal(generic)
	if err != nil {
		return EncryptedResult{}, err
	}
	blob, err := s.aead.Encrypt(plaintext, nil)
	if err != nil {
		return EncryptedResult{}, err
	}
	if len(blob) < ivLen {
		return EncryptedResult{}, ErrCorruptBlob
	}
	iv, ct := blob[:ivLen], blob[ivLen:]
	return EncryptedResult{
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Timestamp:  time.Now().UnixMilli(),
	}, nil
}

// Decrypt opens an EncryptedResult and unmarshals the plaintext into out.
func (s *Session) Decrypt(enc EncryptedResult, out interface{}) error {
	ct, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return ErrCorruptBlob
	}
	iv, err := base64.StdEncoding.DecodeString(enc.IV)
	if err != nil {
		return ErrCorruptBlob
	}
	if len(iv) != ivLen {
		return ErrCorruptBlob
	}
	blob := append(append([]byte{}, iv...), ct...)
	plaintext, err := s.aead.Decrypt(blob, nil)
	if err != nil {
		return ErrAuthFailure
	}
	return json.Unmarshal(plaintext, out)
}

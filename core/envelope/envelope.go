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

// Package envelope wraps server response payloads in a keyed MAC together
// with a nonce and a timestamp, giving the caller integrity and freshness
// without taking a position on transport confidentiality (that is TLS's
// job).
package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benlaurie/objecthash/go/objecthash"
)

const (
	// DefaultMaxAge is the freshness window for an accepted envelope.
	DefaultMaxAge = 5 * time.Minute
	// DefaultFutureSlack bounds how far into the future a timestamp may
	// claim to be before it is rejected as clock skew.
	DefaultFutureSlack = time.Minute

	nonceLen = 16
)

var (
	// ErrStale occurs when an envelope is older than the freshness window.
	ErrStale = errors.New("envelope: response is stale")
	// ErrFuture occurs when an envelope's timestamp is too far ahead of now.
	ErrFuture = errors.New("envelope: response timestamp is in the future")
	// ErrMacMismatch occurs when the recomputed MAC does not match.
	ErrMacMismatch = errors.New("envelope: mac mismatch")
)

// Envelope is the wire wrapper around any JSON-serializable payload.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	MAC       string          `json:"mac"`
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
}

// Wrap serializes payload, attaches a fresh nonce and the current time, and
// computes its MAC under macKey.
func Wrap(macKey []byte, payload interface{}, now time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, err
	}
	ts := now.UnixMilli()
	mac, err := computeMAC(macKey, data, nonce, ts)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Data:      data,
		MAC:       mac,
		Nonce:     hex.EncodeToString(nonce),
		Timestamp: ts,
	}, nil
}

// Unwrap validates freshness and the MAC, then decodes the payload into out.
func Unwrap(macKey []byte, env Envelope, out interface{}, now time.Time, maxAge, futureSlack time.Duration) error {
	age := now.UnixMilli() - env.Timestamp
	if age > maxAge.Milliseconds() {
		return ErrStale
	}
	if -age > futureSlack.Milliseconds() {
		return ErrFuture
	}

	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil {
		return fmt.Errorf("%w: bad nonce encoding", ErrMacMismatch)
	}
	want, err := computeMAC(macKey, env.Data, nonce, env.Timestamp)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(env.MAC)) {
		return ErrMacMismatch
	}
	return json.Unmarshal(env.Data, out)
}

// computeMAC returns HMAC-SHA256(macKey, canonical(data) || ":" ||
// hex(nonce) || ":" || decimal(ts)), where canonical(data) is the
// objecthash digest of the JSON payload: a deterministic, key-order
// independent canonicalization shared by both parties.
func computeMAC(macKey, data, nonce []byte, ts int64) (string, error) {
	digest, err := objecthash.CommonJSONHash(string(data))
	if err != nil {
		return "", err
	}
	m := hmac.New(sha256.New, macKey)
	m.Write(digest[:])
	m.Write([]byte(":"))
	m.Write([]byte(hex.EncodeToString(nonce)))
	m.Write([]byte(":"))
	fmt.Fprintf(m, "%d", ts)
	return hex.EncodeToString(m.Sum(nil)), nil
}

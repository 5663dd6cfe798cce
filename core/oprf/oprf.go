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

// Package oprf implements the client-blind/server-evaluate/client-unblind
// dance of a Diffie-Hellman oblivious PRF over P-256: the server never
// learns the client's pHash and the client never learns the server's key.
package oprf

import (
	"encoding/hex"
	"math/big"

	"github.com/voprfscan/voprfscan/core/curve"
)

// Blind samples a fresh blinding scalar r and returns the blinded point
// P' = r*H(p), where p is the hex-encoded pHash. r must be discarded by the
// caller once Unblind has been called.
func Blind(phashHex string) (blindedHex string, r *big.Int, err error) {
	p, err := hex.DecodeString(phashHex)
	if err != nil {
		return "", nil, err
	}
	r, err = curve.RandomScalar()
	if err != nil {
		return "", nil, err
	}
	h := curve.HashToCurve(p)
	blinded := h.Mul(r)
	return hex.EncodeToString(blinded.Compress()), r, nil
}

// EvaluateServer computes Q = k*P' for the server's secret scalar k. It
// rejects with curve.ErrBadPoint if P' fails to decode or is the identity.
func EvaluateServer(blindedHex string, k *big.Int) (evaluatedHex string, err error) {
	b, err := hex.DecodeString(blindedHex)
	if err != nil {
		return "", curve.ErrBadPoint
	}
	p, err := curve.Decompress(b)
	if err != nil {
		return "", err
	}
	q := p.Mul(k)
	return hex.EncodeToString(q.Compress()), nil
}

// Unblind removes the blinding factor r from Q, returning the PRF token
// r^-1 * Q = k*H(p).
func Unblind(evaluatedHex string, r *big.Int) (tokenHex string, err error) {
	b, err := hex.DecodeString(evaluatedHex)
	if err != nil {
		return "", curve.ErrBadPoint
	}
	q, err := curve.Decompress(b)
	if err != nil {
		return "", err
	}
	rInv := curve.Inverse(r)
	token := q.Mul(rInv)
	return hex.EncodeToString(token.Compress()), nil
}

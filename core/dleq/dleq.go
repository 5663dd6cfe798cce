// Copyright 2020 Google Inc. All Rights Reserved.
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

// Package dleq implements a Fiat-Shamir Chaum-Pedersen proof of discrete-log
// equality: the server proves that it evaluated the OPRF with the same key
// k that its committed public key K = k*G was generated from, without
// revealing k.
package dleq

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/voprfscan/voprfscan/core/curve"
)

var (
	// ErrChallengeMismatch occurs when the recomputed Fiat-Shamir challenge
	// does not match the one carried in the proof.
	ErrChallengeMismatch = errors.New("dleq: challenge mismatch")
	// ErrEqG occurs when s*G != R1 + c*K.
	ErrEqG = errors.New("dleq: s*G != R1 + c*K")
	// ErrEqP occurs when s*P' != R2 + c*Q.
	ErrEqP = errors.New("dleq: s*P' != R2 + c*Q")
	// ErrMalformedProof occurs when a proof's wire fields fail to parse.
	ErrMalformedProof = errors.New("dleq: malformed proof")
)

// Proof is the wire representation of a Chaum-Pedersen DLEQ proof:
// challenge and response are hex scalars, commitment is "R1hex|R2hex".
type Proof struct {
	Challenge  string `json:"challenge"`
	Response   string `json:"response"`
	Commitment string `json:"commitment"`
}

// Prove asserts knowledge of k such that K = k*G and Q = k*P', for the
// tuple (G, K, P', Q). It is run by the server, which holds k.
func Prove(k *big.Int, g, pubK, blinded, evaluated curve.Point) (Proof, error) {
	rho, err := curve.RandomScalar()
	if err != nil {
		return Proof{}, err
	}
	r1 := g.Mul(rho)
	r2 := blinded.Mul(rho)

	c := challenge(g, pubK, blinded, evaluated, r1, r2)
	s := new(big.Int).Mul(c, k)
	s.Add(s, rho)
	s.Mod(s, curve.N)

	return Proof{
		Challenge:  curve.ScalarToHex(c),
		Response:   curve.ScalarToHex(s),
		Commitment: hex.EncodeToString(r1.Compress()) + "|" + hex.EncodeToString(r2.Compress()),
	}, nil
}

// Verify checks a DLEQ proof for the tuple (G, K, P', Q). It is run by the
// client, which never sees k.
func Verify(proof Proof, g, pubK, blinded, evaluated curve.Point) error {
	c, err := curve.ScalarFromHex(proof.Challenge)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	s, err := curve.ScalarFromHex(proof.Response)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	parts := strings.SplitN(proof.Commitment, "|", 2)
	if len(parts) != 2 {
		return ErrMalformedProof
	}
	r1b, err := hex.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	r2b, err := hex.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	r1, err := curve.Decompress(r1b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	r2, err := curve.Decompress(r2b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	cPrime := challenge(g, pubK, blinded, evaluated, r1, r2)
	if c.Cmp(cPrime) != 0 {
		return ErrChallengeMismatch
	}

	// s*G == R1 + c*K
	sg := g.Mul(s)
	ck := pubK.Mul(c)
	if !sg.Equal(r1.Add(ck)) {
		return ErrEqG
	}

	// s*P' == R2 + c*Q
	sp := blinded.Mul(s)
	cq := evaluated.Mul(c)
	if !sp.Equal(r2.Add(cq)) {
		return ErrEqP
	}
	return nil
}

// challenge computes c = SHA-256(hex(G) || hex(K) || hex(P') || hex(Q) ||
// hex(R1) || hex(R2)) mod N. The exact concatenation order is part of the
// wire contract between prover and verifier.
func challenge(g, pubK, blinded, evaluated, r1, r2 curve.Point) *big.Int {
	h := sha256.New()
	for _, p := range []curve.Point{g, pubK, blinded, evaluated, r1, r2} {
		h.Write([]byte(hex.EncodeToString(p.Compress())))
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(h.Sum(nil)), curve.N)
}

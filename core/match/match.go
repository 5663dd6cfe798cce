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

// Package match tests an unblinded OPRF token for membership in the
// evaluated-hash database by Hamming distance over the raw compressed-point
// encodings.
//
// This is a blunt instrument: small Hamming distance between two pHashes
// does not imply small Hamming distance between their images under a
// hash-to-curve modeled as a random oracle. It is nonetheless the database's
// observable matching policy and must not be silently "fixed" into a
// metric-preserving comparison.
package match

import (
	"encoding/hex"
	"math/bits"
)

// DefaultThreshold is the maximum Hamming distance, in bits, admitted as a
// match.
const DefaultThreshold = 10

// Entry is one row of the evaluated-hash database.
type Entry struct {
	File  string `json:"file"`
	PHash string `json:"phash"`
}

// Result is the outcome of testing a token against the database.
type Result struct {
	Matched  bool
	Distance uint32
	File     string
}

// Match tests tokenHex against db in order, returning the first entry whose
// Hamming distance to tokenHex is at most threshold.
func Match(tokenHex string, db []Entry, threshold uint32) (Result, error) {
	token, err := hex.DecodeString(tokenHex)
	if err != nil {
		return Result{}, err
	}
	for _, e := range db {
		entryBytes, err := hex.DecodeString(e.PHash)
		if err != nil {
			continue
		}
		d, ok := hamming(token, entryBytes)
		if !ok {
			continue
		}
		if d <= threshold {
			return Result{Matched: true, Distance: d, File: e.File}, nil
		}
	}
	return Result{Matched: false}, nil
}

// hamming returns the bitwise Hamming distance between two equal-length
// byte strings. ok is false when the lengths differ.
func hamming(a, b []byte) (uint32, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var d uint32
	for i := range a {
		d += uint32(bits.OnesCount8(a[i] ^ b[i]))
	}
	return d, true
}

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

package curve

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// RandomScalar samples a scalar uniformly from [1, N).
func RandomScalar() (*big.Int, error) {
	for {
		k, err := rand.Int(rand.Reader, new(big.Int).Sub(N, big.NewInt(1)))
		if err != nil {
			return nil, err
		}
		k.Add(k, big.NewInt(1))
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// Inverse returns the modular inverse of s mod N.
func Inverse(s *big.Int) *big.Int {
	return new(big.Int).ModInverse(new(big.Int).Mod(s, N), N)
}

// ScalarFromHex parses a hex-encoded scalar, reducing mod N.
func ScalarFromHex(h string) (*big.Int, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mod(new(big.Int).SetBytes(b), N), nil
}

// ScalarToHex renders a scalar as a fixed-width (32-byte) hex string.
func ScalarToHex(s *big.Int) string {
	b := make([]byte, 32)
	s.FillBytes(b)
	return hex.EncodeToString(b)
}

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

// Package curve implements the P-256 scalar and point arithmetic the rest
// of this module builds its VOPRF on: uniform scalar sampling, compressed
// SEC1 point encoding, and the RFC 9380 P256_XMD:SHA-256_SSWU_RO_
// hash-to-curve suite.
package curve

import (
	"crypto/elliptic"
	"errors"
	"math/big"
)

// EC is the NIST P-256 curve used throughout this module.
var EC = elliptic.P256()

var (
	// N is the order of the P-256 group, FIPS 186-4.
	N, _ = new(big.Int).SetString("FFFFFFFF00000000FFFFFFFFFFFFFFFFBCE6FAADA7179E84F3B9CAC2FC632551", 16)
	// P is the P-256 field prime.
	P, _ = new(big.Int).SetString("FFFFFFFF00000001000000000000000000000000FFFFFFFFFFFFFFFFFFFFFFFF", 16)
	// A is the P-256 short-Weierstrass coefficient, a = -3 mod p.
	A = new(big.Int).Sub(P, big.NewInt(3))
	// B is the P-256 short-Weierstrass constant term.
	B = EC.Params().B
	// Gx, Gy pin the standard P-256 base point as a constant, rather than
	// deriving it by scalar-multiplying the generator by 1; they must
	// agree bit-for-bit with elliptic.P256().Params().Gx/Gy.
	Gx, _ = new(big.Int).SetString("6B17D1F2E12C4247F8BCE6E563A440F277037D812DEB33A0F4A13945D898C296", 16)
	Gy, _ = new(big.Int).SetString("4FE342E2FE1A7F9B8EE7EB4A7C0F9E162BCE33576B315ECECBB6406837BF51F5", 16)
)

// ErrBadPoint is returned when a point fails to decode or lies at infinity.
var ErrBadPoint = errors.New("curve: bad point encoding")

// Point is a P-256 affine point, never the identity.
type Point struct {
	X, Y *big.Int
}

// G is the standard P-256 base point.
func G() Point { return Point{X: new(big.Int).Set(Gx), Y: new(big.Int).Set(Gy)} }

// IsValid reports whether p is on the curve and is not the point at infinity.
func (p Point) IsValid() bool {
	if p.X == nil || p.Y == nil {
		return false
	}
	if p.X.Sign() == 0 && p.Y.Sign() == 0 {
		return false
	}
	return EC.IsOnCurve(p.X, p.Y)
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	x, y := EC.Add(p.X, p.Y, q.X, q.Y)
	return Point{X: x, Y: y}
}

// Mul returns s*p for scalar s, reduced mod N.
func (p Point) Mul(s *big.Int) Point {
	k := new(big.Int).Mod(s, N)
	x, y := EC.ScalarMult(p.X, p.Y, k.Bytes())
	return Point{X: x, Y: y}
}

// Equal reports whether p and q are the same affine point.
func (p Point) Equal(q Point) bool {
	if p.X == nil || q.X == nil {
		return p.X == q.X && p.Y == q.Y
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// Compress renders p as a 33-byte SEC1-compressed encoding.
func (p Point) Compress() []byte {
	return elliptic.MarshalCompressed(EC, p.X, p.Y)
}

// Decompress parses a 33-byte SEC1-compressed point. It fails with
// ErrBadPoint on malformed input or the point at infinity.
func Decompress(b []byte) (Point, error) {
	x, y := elliptic.UnmarshalCompressed(EC, b)
	if x == nil {
		return Point{}, ErrBadPoint
	}
	p := Point{X: x, Y: y}
	if !p.IsValid() {
		return Point{}, ErrBadPoint
	}
	return p, nil
}

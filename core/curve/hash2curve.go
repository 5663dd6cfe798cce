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

package curve

import (
	"crypto/sha256"
	"math/big"
)

// dst is the domain separation tag for the P256_XMD:SHA-256_SSWU_RO_ suite
// as used by this module. Interoperating with a database produced by a
// different implementation requires agreeing on this exact string.
var dst = []byte("VOPRFSCAN-V1-P256_XMD:SHA-256_SSWU_RO_")

// swuZ is the non-square, non-(-A/B) constant required by the simplified
// SWU map over P-256, per RFC 9380 section 8.2.
var swuZ = big.NewInt(-10)

const (
	sha256BlockBytes  = 64
	sha256OutputBytes = 32
	// L is ceil((ceil(log2(p)) + k) / 8) for P-256 (log2(p)=256, k=128).
	hashToFieldL = 48
)

// HashToCurve maps an arbitrary byte string to a P-256 point, following the
// RFC 9380 hash_to_curve operation for the P256_XMD:SHA-256_SSWU_RO_ suite:
// two field elements are derived from msg via expand_message_xmd, each is
// mapped to a curve point with the simplified SWU map, and the two points
// are added. P-256 has cofactor 1, so no cofactor clearing is required.
func HashToCurve(msg []byte) Point {
	u := hashToField(msg, 2)
	q0 := mapToCurveSimpleSWU(u[0])
	q1 := mapToCurveSimpleSWU(u[1])
	return q0.Add(q1)
}

// hashToField implements RFC 9380 section 5.3 hash_to_field for P-256 with
// SHA-256, producing count field elements.
func hashToField(msg []byte, count int) []*big.Int {
	lenInBytes := count * hashToFieldL
	uniform := expandMessageXMD(msg, dst, lenInBytes)
	out := make([]*big.Int, count)
	for i := 0; i < count; i++ {
		chunk := uniform[i*hashToFieldL : (i+1)*hashToFieldL]
		out[i] = new(big.Int).Mod(new(big.Int).SetBytes(chunk), P)
	}
	return out
}

// expandMessageXMD implements RFC 9380 section 5.3.1 expand_message_xmd
// using SHA-256.
func expandMessageXMD(msg, dstIn []byte, lenInBytes int) []byte {
	ell := (lenInBytes + sha256OutputBytes - 1) / sha256OutputBytes
	if ell > 255 {
		panic("curve: expand_message_xmd length too large")
	}

	dstPrime := append(append([]byte{}, dstIn...), byte(len(dstIn)))

	zPad := make([]byte, sha256BlockBytes)
	libStr := []byte{byte(lenInBytes >> 8), byte(lenInBytes)}

	msgPrime := append(append([]byte{}, zPad...), msg...)
	msgPrime = append(msgPrime, libStr...)
	msgPrime = append(msgPrime, 0x00)
	msgPrime = append(msgPrime, dstPrime...)

	b0 := sha256.Sum256(msgPrime)

	b1In := append(append([]byte{}, b0[:]...), 0x01)
	b1In = append(b1In, dstPrime...)
	b := sha256.Sum256(b1In)

	uniform := append([]byte{}, b[:]...)
	prev := b
	for i := byte(2); i <= byte(ell); i++ {
		xored := make([]byte, sha256OutputBytes)
		for j := range xored {
			xored[j] = b0[j] ^ prev[j]
		}
		in := append(xored, i)
		in = append(in, dstPrime...)
		next := sha256.Sum256(in)
		uniform = append(uniform, next[:]...)
		prev = next
	}
	return uniform[:lenInBytes]
}

// mapToCurveSimpleSWU implements RFC 9380 appendix F.2, the simplified SWU
// map for curves with A != 0 and B != 0, specialized to P-256 (A = -3).
func mapToCurveSimpleSWU(u *big.Int) Point {
	p := P
	zu2 := new(big.Int).Mul(swuZ, new(big.Int).Mul(u, u))
	zu2.Mod(zu2, p)

	tv1 := new(big.Int).Mul(zu2, zu2)
	tv1.Add(tv1, zu2)
	tv1.Mod(tv1, p)

	var x1 *big.Int
	if tv1.Sign() == 0 {
		// x1 = B / (Z * A) mod p
		za := new(big.Int).Mul(swuZ, A)
		za.Mod(za, p)
		x1 = new(big.Int).Mul(B, modInverse(za, p))
		x1.Mod(x1, p)
	} else {
		// x1 = (-B/A) * (1 + 1/tv1) mod p
		tv1Inv := modInverse(tv1, p)
		x1 = new(big.Int).Add(big.NewInt(1), tv1Inv)
		negBOverA := new(big.Int).Mul(new(big.Int).Neg(B), modInverse(A, p))
		negBOverA.Mod(negBOverA, p)
		x1.Mul(x1, negBOverA)
		x1.Mod(x1, p)
	}

	gx1 := curveEquation(x1)

	x2 := new(big.Int).Mul(zu2, x1)
	x2.Mod(x2, p)
	gx2 := curveEquation(x2)

	var x, y *big.Int
	if isSquare(gx1, p) {
		x = x1
		y = sqrtMod(gx1, p)
	} else {
		x = x2
		y = sqrtMod(gx2, p)
	}

	if sgn0(u) != sgn0(y) {
		y = new(big.Int).Sub(p, y)
	}
	return Point{X: x, Y: y}
}

func curveEquation(x *big.Int) *big.Int {
	p := P
	x3 := new(big.Int).Exp(x, big.NewInt(3), p)
	ax := new(big.Int).Mul(A, x)
	v := new(big.Int).Add(x3, ax)
	v.Add(v, B)
	v.Mod(v, p)
	return v
}

func modInverse(v, p *big.Int) *big.Int {
	return new(big.Int).ModInverse(new(big.Int).Mod(v, p), p)
}

// isSquare reports whether v is a quadratic residue mod p, using Euler's
// criterion for nonzero v. Zero is treated as a square per RFC 9380's
// is_square.
func isSquare(v, p *big.Int) bool {
	if v.Sign() == 0 {
		return true
	}
	e := new(big.Int).Rsh(new(big.Int).Sub(p, big.NewInt(1)), 1)
	r := new(big.Int).Exp(v, e, p)
	return r.Cmp(big.NewInt(1)) == 0
}

// sqrtMod computes a square root of v mod p for p = 3 mod 4, which holds
// for the P-256 field prime.
func sqrtMod(v, p *big.Int) *big.Int {
	e := new(big.Int).Add(p, big.NewInt(1))
	e.Rsh(e, 2)
	return new(big.Int).Exp(v, e, p)
}

// sgn0 implements RFC 9380 section 4.1's sgn0 for prime fields: the sign is
// the parity of v mod p.
func sgn0(v *big.Int) int {
	return int(new(big.Int).Mod(v, P).Bit(0))
}

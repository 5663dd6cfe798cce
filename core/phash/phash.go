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

// Package phash computes a 64-bit perceptual hash of an image via
// grayscale reduction, a 2D DCT-II, and a median threshold over the
// non-DC low-frequency coefficients. Two images that are visually similar
// but byte-different (re-encoded, lightly cropped, recompressed) hash to a
// low Hamming distance.
package phash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

// ErrDecode occurs when the input cannot be decoded as an image.
var ErrDecode = errors.New("phash: cannot decode image")

const (
	sampleSize = 32
	dctBlock   = 8
)

// Hash computes the 16-lowercase-hex-character pHash of imageBytes.
func Hash(imageBytes []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", ErrDecode
	}

	// Resample to a fixed 32x32 grid with a deterministic kernel so that
	// identical input always produces an identical hash.
	dst := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	lum := luminance(dst)
	coeffs := dct2D(lum)

	bits := topLeftNonDC(coeffs)
	median := medianOf(bits)

	var h uint64
	for i, c := range bits {
		if c > median {
			h |= 1 << uint(62-i)
		}
	}
	return fmt.Sprintf("%016x", h), nil
}

// luminance converts an NxN RGBA image to floating-point luma via
// Y = 0.299R + 0.587G + 0.114B.
func luminance(img *image.RGBA) [sampleSize][sampleSize]float64 {
	var out [sampleSize][sampleSize]float64
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA() returns 16-bit-scaled channel values; reduce to 8-bit.
			out[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return out
}

// dct2D computes the forward 2D DCT-II of an NxN matrix with orthonormal
// scaling: c(0) = sqrt(1/N), c(u>0) = sqrt(2/N).
func dct2D(in [sampleSize][sampleSize]float64) [sampleSize][sampleSize]float64 {
	var out [sampleSize][sampleSize]float64
	for u := 0; u < sampleSize; u++ {
		for v := 0; v < sampleSize; v++ {
			out[u][v] = dctCoeff(in, u, v)
		}
	}
	return out
}

func dctCoeff(in [sampleSize][sampleSize]float64, u, v int) float64 {
	var sum float64
	for x := 0; x < sampleSize; x++ {
		for y := 0; y < sampleSize; y++ {
			sum += in[x][y] * cosTerm(x, u) * cosTerm(y, v)
		}
	}
	return cScale(u) * cScale(v) * sum
}

// cosTerm is cos(pi/N * (pos+0.5) * freq), the DCT-II basis function.
func cosTerm(pos, freq int) float64 {
	const n = float64(sampleSize)
	return math.Cos((math.Pi / n) * (float64(pos) + 0.5) * float64(freq))
}

// cScale is the orthonormal DCT-II scaling factor c(0)=sqrt(1/N),
// c(u>0)=sqrt(2/N).
func cScale(freq int) float64 {
	const n = float64(sampleSize)
	if freq == 0 {
		return math.Sqrt(1 / n)
	}
	return math.Sqrt(2 / n)
}

// topLeftNonDC returns the 63 non-DC coefficients of the top-left 8x8
// block, in fixed row-major (u,v) order, skipping (0,0).
func topLeftNonDC(coeffs [sampleSize][sampleSize]float64) []float64 {
	out := make([]float64, 0, dctBlock*dctBlock-1)
	for u := 0; u < dctBlock; u++ {
		for v := 0; v < dctBlock; v++ {
			if u == 0 && v == 0 {
				continue
			}
			out = append(out, coeffs[u][v])
		}
	}
	return out
}

// medianOf returns the exact middle element of an odd-length slice (63
// elements here), without mutating the caller's slice.
func medianOf(vals []float64) float64 {
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

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

// Package scanserver implements the server half of the protocol
// orchestrator: a stateless, per-request handler that evaluates the OPRF
// under the process-wide secret k and proves it did so honestly. Every
// request shares only the immutable (k, K) pair; there is no per-client
// state.
package scanserver

import (
	"encoding/hex"
	"math/big"

	"github.com/golang/glog"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/dleq"
	"github.com/voprfscan/voprfscan/core/oprf"
	"github.com/voprfscan/voprfscan/core/textscan"
)

// ImageScanResponse is the payload carried inside the MAC envelope returned
// from POST /api/scan/image.
type ImageScanResponse struct {
	EvaluatedPoint string     `json:"evaluatedPoint"`
	Proof          dleq.Proof `json:"proof"`
}

// TextScanResponse is the payload carried inside the MAC envelope returned
// from POST /api/scan.
type TextScanResponse struct {
	Status string          `json:"status"`
	Detail textscan.Result `json:"detail"`
}

// KeyCommitment is the static server_key_commitment.json artifact.
type KeyCommitment struct {
	PublicKey string `json:"publicKey"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

// Server holds the process-wide OPRF secret. k never leaves the server;
// only its public commitment K = k*G is ever serialized.
type Server struct {
	k          *big.Int
	pubK       curve.Point
	classifier *textscan.Classifier
}

// New builds a Server from its secret scalar k. K = k*G is computed once,
// immediately, and held for the life of the process (spec.md §5's
// "precompute at startup and hold immutably" option).
func New(k *big.Int, classifier *textscan.Classifier) *Server {
	s := &Server{k: k, classifier: classifier}
	s.pubK = curve.G().Mul(k)
	return s
}

// PublicKey returns the server's public key commitment K.
func (s *Server) PublicKey() curve.Point { return s.pubK }

// EvaluateImage evaluates the OPRF on the client's blinded point and proves
// it honestly used k. It rejects with curve.ErrBadPoint if blindedHex fails
// to decode.
func (s *Server) EvaluateImage(blindedHex string) (ImageScanResponse, error) {
	evaluatedHex, err := oprf.EvaluateServer(blindedHex, s.k)
	if err != nil {
		glog.Warningf("scanserver: rejecting blinded point: %v", err)
		return ImageScanResponse{}, err
	}

	blindedBytes, err := hex.DecodeString(blindedHex)
	if err != nil {
		return ImageScanResponse{}, err
	}
	blinded, err := curve.Decompress(blindedBytes)
	if err != nil {
		return ImageScanResponse{}, err
	}
	evaluatedBytes, err := hex.DecodeString(evaluatedHex)
	if err != nil {
		return ImageScanResponse{}, err
	}
	evaluated, err := curve.Decompress(evaluatedBytes)
	if err != nil {
		return ImageScanResponse{}, err
	}

	proof, err := dleq.Prove(s.k, curve.G(), s.pubK, blinded, evaluated)
	if err != nil {
		return ImageScanResponse{}, err
	}

	return ImageScanResponse{EvaluatedPoint: evaluatedHex, Proof: proof}, nil
}

// ScanText classifies text against the server's keyword lists.
func (s *Server) ScanText(text string) TextScanResponse {
	r := s.classifier.Classify(text)
	return TextScanResponse{Status: string(r.Severity), Detail: r}
}

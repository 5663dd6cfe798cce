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

package scanserver

import (
	"encoding/hex"
	"testing"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/dleq"
	"github.com/voprfscan/voprfscan/core/oprf"
	"github.com/voprfscan/voprfscan/core/textscan"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	k, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	classifier, err := textscan.NewClassifier(nil, nil)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return New(k, classifier)
}

func TestEvaluateImageProducesVerifiableProof(t *testing.T) {
	server := newTestServer(t)

	blindedHex, _, err := oprf.Blind("fffefcf8f0e0c080")
	if err != nil {
		t.Fatalf("oprf.Blind: %v", err)
	}

	resp, err := server.EvaluateImage(blindedHex)
	if err != nil {
		t.Fatalf("EvaluateImage: %v", err)
	}

	blindedBytes, _ := hex.DecodeString(blindedHex)
	blinded, err := curve.Decompress(blindedBytes)
	if err != nil {
		t.Fatalf("Decompress(blinded): %v", err)
	}
	evaluatedBytes, _ := hex.DecodeString(resp.EvaluatedPoint)
	evaluated, err := curve.Decompress(evaluatedBytes)
	if err != nil {
		t.Fatalf("Decompress(evaluated): %v", err)
	}

	if err := dleq.Verify(resp.Proof, curve.G(), server.PublicKey(), blinded, evaluated); err != nil {
		t.Errorf("dleq.Verify(server's proof) = %v, want nil", err)
	}
}

func TestEvaluateImageRejectsMalformedPoint(t *testing.T) {
	server := newTestServer(t)
	if _, err := server.EvaluateImage("not-hex-at-all"); err != curve.ErrBadPoint {
		t.Errorf("EvaluateImage(garbage) = %v, want ErrBadPoint", err)
	}
}

func TestScanTextSeverities(t *testing.T) {
	k, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	classifier, err := textscan.NewClassifier([]string{"badword"}, []string{"caution"})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	server := New(k, classifier)

	resp := server.ScanText("contains badword")
	if resp.Status != string(textscan.Blocked) {
		t.Errorf("ScanText status = %q, want %q", resp.Status, textscan.Blocked)
	}
}

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

package scanclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/envelope"
	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/match"
	"github.com/voprfscan/voprfscan/core/phash"
	"github.com/voprfscan/voprfscan/core/scanserver"
	"github.com/voprfscan/voprfscan/core/textscan"
	"github.com/voprfscan/voprfscan/core/vault"
)

// inProcessTransport wires a Client directly to a scanserver.Server,
// skipping the network, the way the teacher's client tests stub a
// connection directly to a server object.
type inProcessTransport struct {
	server *scanserver.Server
	macKey []byte
}

func (tr *inProcessTransport) ScanImage(ctx context.Context, blindedHex string) (envelope.Envelope, error) {
	resp, err := tr.server.EvaluateImage(blindedHex)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return envelope.Wrap(tr.macKey, resp, time.Now())
}

func (tr *inProcessTransport) ScanText(ctx context.Context, text string) (envelope.Envelope, error) {
	resp := tr.server.ScanText(text)
	return envelope.Wrap(tr.macKey, resp, time.Now())
}

const dbSigningKey = "test-db-signing-key"

func newTestFixture(t *testing.T) (*Client, *scanserver.Server) {
	t.Helper()
	k, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	classifier, err := textscan.NewClassifier([]string{"badword"}, []string{"caution"})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	server := scanserver.New(k, classifier)

	macKey := []byte("test-mac-key")
	transport := &inProcessTransport{server: server, macKey: macKey}

	vaultSession, _, err := vault.NewRandomSession()
	if err != nil {
		t.Fatalf("NewRandomSession: %v", err)
	}

	client := New(transport, macKey, vaultSession, match.DefaultThreshold)
	if err := client.LoadKeyCommitment(hex.EncodeToString(server.PublicKey().Compress())); err != nil {
		t.Fatalf("LoadKeyCommitment: %v", err)
	}
	return client, server
}

// evaluatedToken asks the server to evaluate H(p) itself (an unblinded
// point is a validly-encoded blinded point with blinding factor 1),
// yielding exactly the token k*H(p) the offline database generator would
// have produced, without needing to export the server's secret scalar.
func evaluatedToken(t *testing.T, server *scanserver.Server, phashHex string) string {
	t.Helper()
	pBytes, err := hex.DecodeString(phashHex)
	if err != nil {
		t.Fatalf("hex.DecodeString: %v", err)
	}
	h := curve.HashToCurve(pBytes)
	resp, err := server.EvaluateImage(hex.EncodeToString(h.Compress()))
	if err != nil {
		t.Fatalf("EvaluateImage: %v", err)
	}
	return resp.EvaluatedPoint
}

func buildDatabase(t *testing.T, server *scanserver.Server, phashHex, fileID string) ([]byte, manifest.Manifest) {
	t.Helper()
	entries := []match.Entry{{File: fileID, PHash: evaluatedToken(t, server, phashHex)}}
	dbBytes, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	m := manifest.Generate([]byte(dbSigningKey), dbBytes, "v1", time.Now())
	return dbBytes, m
}

// solidColorPNG renders a trivial, deterministic test image so phash.Hash
// has something real to decode and hash.
func solidColorPNG(t *testing.T, r, g, b uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{r, g, b, 255})
			if x < 32 && y < 32 {
				img.Set(x, y, color.RGBA{255 - r, 255 - g, 255 - b, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestScanImageHappyPathMatch(t *testing.T) {
	client, server := newTestFixture(t)

	img := solidColorPNG(t, 200, 60, 10)
	wantHash, err := phash.Hash(img)
	if err != nil {
		t.Fatalf("phash.Hash: %v", err)
	}

	dbBytes, m := buildDatabase(t, server, wantHash, "known-bad.jpg")
	if err := client.LoadDatabase([]byte(dbSigningKey), dbBytes, m); err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}

	outcome, err := client.ScanImage(context.Background(), img)
	if err != nil {
		t.Fatalf("ScanImage: %v", err)
	}
	if !outcome.Matched || outcome.File != "known-bad.jpg" || outcome.Distance != 0 {
		t.Errorf("ScanImage outcome = %+v, want exact match on known-bad.jpg", outcome)
	}
}

func TestScanImageMiss(t *testing.T) {
	client, server := newTestFixture(t)

	dbBytes, m := buildDatabase(t, server, "0123456789abcdef", "unrelated.jpg")
	if err := client.LoadDatabase([]byte(dbSigningKey), dbBytes, m); err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}

	img := solidColorPNG(t, 10, 10, 10)
	outcome, err := client.ScanImage(context.Background(), img)
	if err != nil {
		t.Fatalf("ScanImage: %v", err)
	}
	if outcome.Matched {
		t.Errorf("ScanImage outcome = %+v, want no match", outcome)
	}
}

func TestScanImageRefusesWithoutVerifiedDB(t *testing.T) {
	client, _ := newTestFixture(t)
	if _, err := client.ScanImage(context.Background(), []byte("irrelevant")); err != ErrDBUnverified {
		t.Errorf("ScanImage without a verified DB = %v, want ErrDBUnverified", err)
	}
}

func TestScanImageRefusesAfterFailedVerification(t *testing.T) {
	client, server := newTestFixture(t)

	entries := []match.Entry{{File: "unrelated.jpg", PHash: evaluatedToken(t, server, "0123456789abcdef")}}
	dbBytes, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	backdated := time.Now().Add(-31 * 24 * time.Hour)
	m := manifest.Generate([]byte(dbSigningKey), dbBytes, "v1", backdated)

	if err := client.LoadDatabase([]byte(dbSigningKey), dbBytes, m); err != manifest.ErrExpired {
		t.Fatalf("LoadDatabase(31-day-stale manifest) = %v, want ErrExpired", err)
	}
	if _, err := client.ScanImage(context.Background(), []byte("irrelevant")); err != ErrDBUnverified {
		t.Errorf("ScanImage after failed verification = %v, want ErrDBUnverified", err)
	}
}

func TestScanTextRoundTrip(t *testing.T) {
	client, _ := newTestFixture(t)
	out, err := client.ScanText(context.Background(), "this has a badword in it")
	if err != nil {
		t.Fatalf("ScanText: %v", err)
	}
	if out.Status != string(textscan.Blocked) {
		t.Errorf("ScanText status = %q, want %q", out.Status, textscan.Blocked)
	}
}

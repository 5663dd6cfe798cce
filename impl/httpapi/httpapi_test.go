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

package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/dleq"
	"github.com/voprfscan/voprfscan/core/envelope"
	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/oprf"
	"github.com/voprfscan/voprfscan/core/scanserver"
	"github.com/voprfscan/voprfscan/core/textscan"
)

const macKey = "test-mac-key"

func newTestHandler(t *testing.T) (*Handler, *scanserver.Server) {
	t.Helper()
	k, err := curve.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	classifier, err := textscan.NewClassifier([]string{"badword"}, nil)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	server := scanserver.New(k, classifier)

	kcJSON, err := BuildKeyCommitmentJSON(server.PublicKey(), "v1", time.Now())
	if err != nil {
		t.Fatalf("BuildKeyCommitmentJSON: %v", err)
	}
	dbBytes := []byte(`[]`)
	m := manifest.Generate([]byte("db-signing-key"), dbBytes, "v1", time.Now())

	h := New(server, []byte(macKey), Artifacts{DBBytes: dbBytes, DBManifest: m, KeyCommitmentJSON: kcJSON})
	return h, server
}

func TestHandleScanTextReturnsEnvelopedResult(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Mux())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"text": "has a badword here"})
	resp, err := http.Post(srv.URL+"/api/scan", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env envelope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := envelope.Unwrap([]byte(macKey), env, &out, time.Now(), time.Hour, time.Hour); err != nil {
		t.Fatalf("envelope.Unwrap: %v", err)
	}
	if out.Status != string(textscan.Blocked) {
		t.Errorf("status = %q, want %q", out.Status, textscan.Blocked)
	}
}

func TestHandleScanTextRejectsGet(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/scan")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func multipartBody(t *testing.T, field, value string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(field, value); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestHandleScanImageReturnsVerifiableProof(t *testing.T) {
	h, server := newTestHandler(t)
	srv := httptest.NewServer(h.Mux())
	defer srv.Close()

	blindedHex, _, err := oprf.Blind("fffefcf8f0e0c080")
	if err != nil {
		t.Fatalf("oprf.Blind: %v", err)
	}
	body, contentType := multipartBody(t, "blindedPoint", blindedHex)

	resp, err := http.Post(srv.URL+"/api/scan/image", contentType, body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env envelope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var out scanserver.ImageScanResponse
	if err := envelope.Unwrap([]byte(macKey), env, &out, time.Now(), time.Hour, time.Hour); err != nil {
		t.Fatalf("envelope.Unwrap: %v", err)
	}

	blindedBytes, _ := hex.DecodeString(blindedHex)
	blinded, err := curve.Decompress(blindedBytes)
	if err != nil {
		t.Fatalf("Decompress(blinded): %v", err)
	}
	evaluatedBytes, _ := hex.DecodeString(out.EvaluatedPoint)
	evaluated, err := curve.Decompress(evaluatedBytes)
	if err != nil {
		t.Fatalf("Decompress(evaluated): %v", err)
	}
	if err := dleq.Verify(out.Proof, curve.G(), server.PublicKey(), blinded, evaluated); err != nil {
		t.Errorf("dleq.Verify = %v, want nil", err)
	}
}

func TestHandleScanImageRejectsMissingField(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Mux())
	defer srv.Close()

	body, contentType := multipartBody(t, "somethingElse", "x")
	resp, err := http.Post(srv.URL+"/api/scan/image", contentType, body)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStaticArtifactsServed(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Mux())
	defer srv.Close()

	for _, path := range []string{
		"/server_key_commitment.json",
		"/eHashes/evaluated_phashes.json",
		"/eHashes/database_signature.json",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("Get(%s): %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Get(%s) status = %d, want 200", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

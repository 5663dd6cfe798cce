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

// Package httpapi wires core/scanserver into net/http handlers for the two
// JSON endpoints and the three static artifacts of spec.md §6.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/envelope"
	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/scanserver"
)

// Artifacts is the immutable, startup-loaded evaluated-hash database, its
// manifest, and the key-commitment artifact, served at the three well-known
// static paths. The database and key-commitment bytes are served verbatim;
// the manifest is JSON-encoded on each request.
type Artifacts struct {
	DBBytes           []byte
	DBManifest        manifest.Manifest
	KeyCommitmentJSON []byte
}

// Handler serves spec.md §6's endpoints atop a scanserver.Server.
type Handler struct {
	server    *scanserver.Server
	macKey    []byte
	artifacts Artifacts
	now       func() time.Time
}

// New builds a Handler. version is embedded into the key-commitment
// artifact (spec.md §6, SPEC_FULL.md §5's versioning supplement).
func New(server *scanserver.Server, macKey []byte, artifacts Artifacts) *Handler {
	return &Handler{server: server, macKey: macKey, artifacts: artifacts, now: time.Now}
}

// Mux builds the complete *http.ServeMux for this handler, mirroring the
// teacher's practice of assembling one mux per server in main().
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", h.handleScanText)
	mux.HandleFunc("/api/scan/image", h.handleScanImage)
	mux.HandleFunc("/server_key_commitment.json", h.handleKeyCommitment)
	mux.HandleFunc("/eHashes/evaluated_phashes.json", h.handleDatabase)
	mux.HandleFunc("/eHashes/database_signature.json", h.handleManifest)
	return mux
}

type textScanRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleScanText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req textScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	resp := h.server.ScanText(req.Text)
	h.writeEnveloped(w, resp)
}

func (h *Handler) handleScanImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "bad multipart form", http.StatusBadRequest)
		return
	}
	blindedHex := r.FormValue("blindedPoint")
	if blindedHex == "" {
		http.Error(w, "missing blindedPoint field", http.StatusBadRequest)
		return
	}
	resp, err := h.server.EvaluateImage(blindedHex)
	if err != nil {
		glog.Warningf("httpapi: rejecting /api/scan/image: %v", err)
		http.Error(w, "bad point", http.StatusBadRequest)
		return
	}
	h.writeEnveloped(w, resp)
}

func (h *Handler) writeEnveloped(w http.ResponseWriter, payload interface{}) {
	env, err := envelope.Wrap(h.macKey, payload, h.now())
	if err != nil {
		glog.Errorf("httpapi: failed to wrap response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		glog.Errorf("httpapi: failed to encode envelope: %v", err)
	}
}

func (h *Handler) handleKeyCommitment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.artifacts.KeyCommitmentJSON)
}

func (h *Handler) handleDatabase(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.artifacts.DBBytes)
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.artifacts.DBManifest); err != nil {
		glog.Errorf("httpapi: failed to encode manifest: %v", err)
	}
}

// BuildKeyCommitmentJSON renders the static server_key_commitment.json
// artifact for a public key K.
func BuildKeyCommitmentJSON(pubK curve.Point, version string, now time.Time) ([]byte, error) {
	return json.Marshal(scanserver.KeyCommitment{
		PublicKey: hex.EncodeToString(pubK.Compress()),
		Timestamp: now.UnixMilli(),
		Version:   version,
	})
}

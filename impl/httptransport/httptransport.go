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

// Package httptransport implements core/scanclient.Transport over
// net/http, the client-side counterpart to impl/httpapi.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/voprfscan/voprfscan/core/envelope"
)

// Transport is an HTTP client bound to one server's base URL.
type Transport struct {
	BaseURL string
	Client  *http.Client
}

// New builds a Transport against baseURL using http.DefaultClient.
func New(baseURL string) *Transport {
	return &Transport{BaseURL: baseURL, Client: http.DefaultClient}
}

// ScanImage posts a multipart form with the blindedPoint field to
// /api/scan/image and decodes the returned envelope.
func (t *Transport) ScanImage(ctx context.Context, blindedPointHex string) (envelope.Envelope, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("blindedPoint", blindedPointHex); err != nil {
		return envelope.Envelope{}, err
	}
	if err := w.Close(); err != nil {
		return envelope.Envelope{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/scan/image", &body)
	if err != nil {
		return envelope.Envelope{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return t.do(req)
}

// ScanText posts {"text": text} to /api/scan and decodes the returned
// envelope.
func (t *Transport) ScanText(ctx context.Context, text string) (envelope.Envelope, error) {
	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return envelope.Envelope{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/scan", bytes.NewReader(payload))
	if err != nil {
		return envelope.Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

func (t *Transport) do(req *http.Request) (envelope.Envelope, error) {
	resp, err := t.Client.Do(req)
	if err != nil {
		return envelope.Envelope{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return envelope.Envelope{}, fmt.Errorf("httptransport: server returned %s", resp.Status)
	}
	var env envelope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope.Envelope{}, err
	}
	return env, nil
}

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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/match"
	"github.com/voprfscan/voprfscan/core/scanclient"
	"github.com/voprfscan/voprfscan/core/scanserver"
	"github.com/voprfscan/voprfscan/core/vault"
	"github.com/voprfscan/voprfscan/impl/config"
	"github.com/voprfscan/voprfscan/impl/httptransport"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Base URL of the voprfscan server")
	imagePath = flag.String("image", "", "Path to the image to scan")
	timeout   = flag.Duration("timeout", 30*time.Second, "Request timeout for the scan")
)

func fetch(baseURL, path string) ([]byte, error) {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return ioutil.ReadAll(resp.Body)
}

func main() {
	flag.Parse()
	if *imagePath == "" {
		glog.Exit("Usage: voprfscan-client -image=<path> [-server=<url>]")
	}

	imageBytes, err := ioutil.ReadFile(*imagePath)
	if err != nil {
		glog.Exitf("Failed to read image: %v", err)
	}

	keyCommitmentJSON, err := fetch(*serverURL, "/server_key_commitment.json")
	if err != nil {
		glog.Exitf("Failed to fetch key commitment: %v", err)
	}
	var keyCommitment scanserver.KeyCommitment
	if err := json.Unmarshal(keyCommitmentJSON, &keyCommitment); err != nil {
		glog.Exitf("Failed to parse key commitment: %v", err)
	}

	dbBytes, err := fetch(*serverURL, "/eHashes/evaluated_phashes.json")
	if err != nil {
		glog.Exitf("Failed to fetch hash database: %v", err)
	}
	manifestBytes, err := fetch(*serverURL, "/eHashes/database_signature.json")
	if err != nil {
		glog.Exitf("Failed to fetch database manifest: %v", err)
	}
	var dbManifest manifest.Manifest
	if err := json.Unmarshal(manifestBytes, &dbManifest); err != nil {
		glog.Exitf("Failed to parse database manifest: %v", err)
	}

	macKey, dbSigningKey := config.LoadClientSecrets()

	vaultSession, _, err := vault.NewRandomSession()
	if err != nil {
		glog.Exitf("Failed to initialize result vault: %v", err)
	}

	transport := httptransport.New(*serverURL)
	client := scanclient.New(transport, macKey, vaultSession, match.DefaultThreshold)

	if err := client.LoadKeyCommitment(keyCommitment.PublicKey); err != nil {
		glog.Exitf("Failed to load server key commitment: %v", err)
	}
	if err := client.LoadDatabase(dbSigningKey, dbBytes, dbManifest); err != nil {
		glog.Exitf("Database failed verification (%v); refusing to scan (DBUnverified)", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	outcome, err := client.ScanImage(ctx, imageBytes)
	if err != nil {
		glog.Exitf("Scan failed: %v", err)
	}

	if outcome.Matched {
		fmt.Printf("MATCH file=%s distance=%d\n", outcome.File, outcome.Distance)
	} else {
		fmt.Println("NO MATCH")
	}
}

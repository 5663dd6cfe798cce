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

// voprfscan-dbgen is the offline generation side of C6 (spec.md §4.6): it
// evaluates a list of known-bad pHashes under the server's secret scalar
// and writes the evaluated-hash database plus its signed manifest.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"io/ioutil"
	"time"

	"github.com/golang/glog"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/match"
	"github.com/voprfscan/voprfscan/impl/config"
)

var (
	inputPath    = flag.String("input", "", "Path to a JSON array of {file, phash} known-bad pHash entries")
	outputPath   = flag.String("output", "genfiles/evaluated_phashes.json", "Path to write the evaluated-hash database")
	manifestPath = flag.String("manifest", "genfiles/database_signature.json", "Path to write the signed manifest")
	version      = flag.String("version", "dev", "Version string recorded in the manifest")
)

type inputEntry struct {
	File  string `json:"file"`
	PHash string `json:"phash"`
}

func main() {
	flag.Parse()
	if *inputPath == "" {
		glog.Exit("Usage: voprfscan-dbgen -input=<known_bad.json> [-output=...] [-manifest=...]")
	}

	secrets, err := config.LoadServerSecrets(true)
	if err != nil {
		glog.Exitf("Failed to load server secrets: %v", err)
	}

	raw, err := ioutil.ReadFile(*inputPath)
	if err != nil {
		glog.Exitf("Failed to read input: %v", err)
	}
	var inputs []inputEntry
	if err := json.Unmarshal(raw, &inputs); err != nil {
		glog.Exitf("Failed to parse input: %v", err)
	}

	entries := make([]match.Entry, 0, len(inputs))
	for _, in := range inputs {
		pBytes, err := hex.DecodeString(in.PHash)
		if err != nil {
			glog.Exitf("Bad pHash %q for file %q: %v", in.PHash, in.File, err)
		}
		h := curve.HashToCurve(pBytes)
		token := h.Mul(secrets.OPRFKey)
		entries = append(entries, match.Entry{
			File:  in.File,
			PHash: hex.EncodeToString(token.Compress()),
		})
	}

	dbBytes, err := json.Marshal(entries)
	if err != nil {
		glog.Exitf("Failed to marshal database: %v", err)
	}
	if err := ioutil.WriteFile(*outputPath, dbBytes, 0o644); err != nil {
		glog.Exitf("Failed to write database: %v", err)
	}

	m := manifest.Generate(secrets.DBSigningKey, dbBytes, *version, time.Now())
	manifestBytes, err := json.Marshal(m)
	if err != nil {
		glog.Exitf("Failed to marshal manifest: %v", err)
	}
	if err := ioutil.WriteFile(*manifestPath, manifestBytes, 0o644); err != nil {
		glog.Exitf("Failed to write manifest: %v", err)
	}

	glog.Infof("Wrote %d entries to %s, signed manifest to %s", len(entries), *outputPath, *manifestPath)
}

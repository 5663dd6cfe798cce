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
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/scanserver"
	"github.com/voprfscan/voprfscan/core/textscan"
	"github.com/voprfscan/voprfscan/impl/config"
	"github.com/voprfscan/voprfscan/impl/httpapi"
)

var (
	addr              = flag.String("addr", ":8080", "The ip:port combination to listen on")
	dbPath            = flag.String("db", "genfiles/evaluated_phashes.json", "Path to the evaluated-hash database")
	dbSigPath         = flag.String("dbsig", "genfiles/database_signature.json", "Path to the database's signed manifest")
	version           = flag.String("version", "dev", "Version string embedded in the key commitment artifact")
	requireProdSecrets = flag.Bool("require-prod-secrets", false, "Fail startup if SERVER_OPRF_KEY is unset")
	blockWords        = flag.String("block-words", "", "Comma-separated list of blocking keywords for the text-scan path")
	warnWords         = flag.String("warn-words", "", "Comma-separated list of warning keywords for the text-scan path")
)

func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadArtifacts reads the evaluated-hash database and its signed manifest
// concurrently, following core/keyserver's use of errgroup for independent
// startup fan-out.
func loadArtifacts(ctx context.Context) ([]byte, manifest.Manifest, error) {
	var dbBytes, manifestBytes []byte
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := ioutil.ReadFile(*dbPath)
		if err != nil {
			return err
		}
		dbBytes = b
		return nil
	})
	g.Go(func() error {
		b, err := ioutil.ReadFile(*dbSigPath)
		if err != nil {
			return err
		}
		manifestBytes = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, manifest.Manifest{}, err
	}

	var m manifest.Manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		return nil, manifest.Manifest{}, err
	}
	return dbBytes, m, nil
}

func main() {
	flag.Parse()

	secrets, err := config.LoadServerSecrets(*requireProdSecrets)
	if err != nil {
		glog.Exitf("Failed to load server secrets: %v", err)
	}

	dbBytes, dbManifest, err := loadArtifacts(context.Background())
	if err != nil {
		glog.Exitf("Failed to load hash database artifacts: %v", err)
	}
	if err := manifest.Verify(secrets.DBSigningKey, dbBytes, dbManifest, time.Now()); err != nil {
		glog.Warningf("Startup self-check: database manifest does not verify under this server's DB_SIGNING_KEY: %v", err)
	}

	classifier, err := textscan.NewClassifier(splitWords(*blockWords), splitWords(*warnWords))
	if err != nil {
		glog.Exitf("Failed to compile text-scan keyword lists: %v", err)
	}

	server := scanserver.New(secrets.OPRFKey, classifier)

	keyCommitmentJSON, err := httpapi.BuildKeyCommitmentJSON(server.PublicKey(), *version, time.Now())
	if err != nil {
		glog.Exitf("Failed to build key commitment artifact: %v", err)
	}

	handler := httpapi.New(server, secrets.MACKey, httpapi.Artifacts{
		DBBytes:           dbBytes,
		DBManifest:        dbManifest,
		KeyCommitmentJSON: keyCommitmentJSON,
	})

	glog.Infof("Listening on %v", *addr)
	if err := http.ListenAndServe(*addr, handler.Mux()); err != nil {
		glog.Exitf("ListenAndServe: %v", err)
	}
}

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

// Package scanclient implements the client half of the protocol
// orchestrator: the single-threaded cooperative state machine that drives
// one image through hashing, blinding, the round trip to the server,
// envelope and proof verification, unblinding, matching, and encrypted
// storage.
package scanclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/voprfscan/voprfscan/core/curve"
	"github.com/voprfscan/voprfscan/core/dleq"
	"github.com/voprfscan/voprfscan/core/envelope"
	"github.com/voprfscan/voprfscan/core/manifest"
	"github.com/voprfscan/voprfscan/core/match"
	"github.com/voprfscan/voprfscan/core/oprf"
	"github.com/voprfscan/voprfscan/core/phash"
	"github.com/voprfscan/voprfscan/core/scanserver"
	"github.com/voprfscan/voprfscan/core/textscan"
	"github.com/voprfscan/voprfscan/core/vault"
)

// ErrDBUnverified occurs when ScanImage is called before a hash database
// has passed manifest verification in the current session.
var ErrDBUnverified = errors.New("scanclient: database not verified")

// State names the node the client state machine currently occupies. It is
// exported only for observability (logging, tests); callers never set it
// directly.
type State int

const (
	Idle State = iota
	Hashing
	Blinding
	AwaitServer
	VerifyEnv
	VerifyProof
	Unblind
	Match
	EncryptStore
	Fail
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Hashing:
		return "HASHING"
	case Blinding:
		return "BLINDING"
	case AwaitServer:
		return "AWAIT_SERVER"
	case VerifyEnv:
		return "VERIFY_ENV"
	case VerifyProof:
		return "VERIFY_PROOF"
	case Unblind:
		return "UNBLIND"
	case Match:
		return "MATCH"
	case EncryptStore:
		return "ENCRYPT_STORE"
	case Fail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Transport reaches the server for the two JSON endpoints. A real
// implementation wraps an *http.Client; tests can substitute an in-process
// fake wired directly to a scanserver.Server.
type Transport interface {
	ScanImage(ctx context.Context, blindedPointHex string) (envelope.Envelope, error)
	ScanText(ctx context.Context, text string) (envelope.Envelope, error)
}

// Outcome is the result of one completed image scan.
type Outcome struct {
	Matched  bool
	Distance uint32
	File     string
	Stored   vault.EncryptedResult
}

// TextOutcome is the result of one completed text scan.
type TextOutcome struct {
	Status string
	Detail textscan.Result
}

// Client drives the per-scan state machine. It is not safe for concurrent
// ScanImage calls against the same underlying vault session; per §5, the
// result vault is the one resource concurrent scans must serialize on.
type Client struct {
	transport Transport
	macKey    []byte
	vault     *vault.Session
	pubK      curve.Point
	haveKey   bool
	threshold uint32

	dbVerified bool
	db         []match.Entry

	state State
	now   func() time.Time
}

// New builds a Client. threshold is the Hamming-distance cutoff passed to
// the match engine (C7); pass match.DefaultThreshold absent an override.
func New(transport Transport, macKey []byte, vaultSession *vault.Session, threshold uint32) *Client {
	return &Client{
		transport: transport,
		macKey:    macKey,
		vault:     vaultSession,
		threshold: threshold,
		state:     Idle,
		now:       time.Now,
	}
}

// State reports the state machine's current node.
func (c *Client) State() State { return c.state }

// LoadKeyCommitment parses the server's published public key commitment K
// from its compressed-point hex encoding.
func (c *Client) LoadKeyCommitment(publicKeyHex string) error {
	b, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", curve.ErrBadPoint, err)
	}
	p, err := curve.Decompress(b)
	if err != nil {
		return err
	}
	c.pubK = p
	c.haveKey = true
	return nil
}

// LoadDatabase verifies m against dbBytes under signingKey and, on success,
// parses dbBytes as the evaluated-hash database and admits it to the match
// engine. On failure the client is left (or placed) in the unverified
// state and ScanImage refuses with ErrDBUnverified until a subsequent call
// succeeds, per spec.md §4.9's precondition and §4.6's "lock down scanning
// until next successful verification".
func (c *Client) LoadDatabase(signingKey, dbBytes []byte, m manifest.Manifest) error {
	if err := manifest.Verify(signingKey, dbBytes, m, c.now()); err != nil {
		c.dbVerified = false
		glog.Warningf("scanclient: database manifest rejected: %v", err)
		return err
	}
	var entries []match.Entry
	if err := json.Unmarshal(dbBytes, &entries); err != nil {
		c.dbVerified = false
		return err
	}
	c.db = entries
	c.dbVerified = true
	return nil
}

// ScanImage drives imageBytes through the full client state machine,
// returning the match outcome and its encrypted-at-rest form.
func (c *Client) ScanImage(ctx context.Context, imageBytes []byte) (Outcome, error) {
	if !c.dbVerified {
		c.state = Fail
		return Outcome{}, ErrDBUnverified
	}
	if !c.haveKey {
		c.state = Fail
		return Outcome{}, fmt.Errorf("scanclient: no server key commitment loaded")
	}

	c.state = Hashing
	hashHex, err := phash.Hash(imageBytes)
	if err != nil {
		c.state = Fail
		return Outcome{}, fmt.Errorf("scan failed: %w", err)
	}

	c.state = Blinding
	blindedHex, r, err := oprf.Blind(hashHex)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}

	c.state = AwaitServer
	env, err := c.transport.ScanImage(ctx, blindedHex)
	if err != nil {
		c.state = Fail
		return Outcome{}, fmt.Errorf("scanclient: transport error: %w", err)
	}

	c.state = VerifyEnv
	var resp scanserver.ImageScanResponse
	if err := envelope.Unwrap(c.macKey, env, &resp, c.now(), envelope.DefaultMaxAge, envelope.DefaultFutureSlack); err != nil {
		c.state = Fail
		return Outcome{}, fmt.Errorf("response integrity failed: %w", err)
	}

	c.state = VerifyProof
	blindedPoint, err := decompressHex(blindedHex)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}
	evaluatedPoint, err := decompressHex(resp.EvaluatedPoint)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}
	if err := dleq.Verify(resp.Proof, curve.G(), c.pubK, blindedPoint, evaluatedPoint); err != nil {
		c.state = Fail
		return Outcome{}, fmt.Errorf("server proof invalid: %w", err)
	}

	c.state = Unblind
	tokenHex, err := oprf.Unblind(resp.EvaluatedPoint, r)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}

	c.state = Match
	result, err := match.Match(tokenHex, c.db, c.threshold)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}

	c.state = EncryptStore
	stored, err := c.vault.Encrypt(result)
	if err != nil {
		c.state = Fail
		return Outcome{}, err
	}

	c.state = Idle
	return Outcome{Matched: result.Matched, Distance: result.Distance, File: result.File, Stored: stored}, nil
}

// ScanText submits text for keyword classification and verifies the
// returned envelope. It does not touch the image-scan state machine or its
// DBUnverified precondition: per spec.md §1, text scanning is a thin,
// non-cryptographic collaborator that only borrows C5's envelope.
func (c *Client) ScanText(ctx context.Context, text string) (TextOutcome, error) {
	env, err := c.transport.ScanText(ctx, text)
	if err != nil {
		return TextOutcome{}, fmt.Errorf("scanclient: transport error: %w", err)
	}
	var resp scanserver.TextScanResponse
	if err := envelope.Unwrap(c.macKey, env, &resp, c.now(), envelope.DefaultMaxAge, envelope.DefaultFutureSlack); err != nil {
		return TextOutcome{}, fmt.Errorf("response integrity failed: %w", err)
	}
	return TextOutcome{Status: resp.Status, Detail: resp.Detail}, nil
}

func decompressHex(h string) (curve.Point, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return curve.Point{}, fmt.Errorf("%w: %v", curve.ErrBadPoint, err)
	}
	return curve.Decompress(b)
}

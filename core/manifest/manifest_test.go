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

package manifest

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	key := []byte("signing-key")
	db := []byte(`[{"file":"a","phash":"00"}]`)
	now := time.Now()

	m := Generate(key, db, "v1", now)
	if err := Verify(key, db, m, now); err != nil {
		t.Errorf("Verify(freshly generated manifest) = %v, want nil", err)
	}
}

func TestVerifyDetectsDBTamper(t *testing.T) {
	key := []byte("signing-key")
	db := []byte(`[{"file":"a","phash":"00"}]`)
	now := time.Now()

	m := Generate(key, db, "v1", now)
	tampered := append([]byte{}, db...)
	tampered[len(tampered)-2] = '1'

	if err := Verify(key, tampered, m, now); err != ErrHashMismatch {
		t.Errorf("Verify(tampered db) = %v, want ErrHashMismatch", err)
	}
}

func TestVerifyDetectsSignatureTamper(t *testing.T) {
	key := []byte("signing-key")
	db := []byte(`[{"file":"a","phash":"00"}]`)
	now := time.Now()

	m := Generate(key, db, "v1", now)
	last := m.Signature[len(m.Signature)-1]
	if last == '0' {
		last = '1'
	} else {
		last = '0'
	}
	m.Signature = m.Signature[:len(m.Signature)-1] + string(last)

	if err := Verify(key, db, m, now); err != ErrSigMismatch {
		t.Errorf("Verify(tampered signature) = %v, want ErrSigMismatch", err)
	}
}

func TestExpiryBoundary(t *testing.T) {
	key := []byte("signing-key")
	db := []byte(`[{"file":"a","phash":"00"}]`)
	start := time.Now()

	m := Generate(key, db, "v1", start)

	justInside := start.Add(MaxAge)
	if err := Verify(key, db, m, justInside); err != nil {
		t.Errorf("Verify at exactly MaxAge = %v, want nil", err)
	}

	justOutside := start.Add(MaxAge + time.Millisecond)
	if err := Verify(key, db, m, justOutside); err != ErrExpired {
		t.Errorf("Verify past MaxAge = %v, want ErrExpired", err)
	}
}

func TestBackdated31DaysExpires(t *testing.T) {
	key := []byte("signing-key")
	db := []byte(`[{"file":"a","phash":"00"}]`)
	backdated := time.Now().Add(-31 * 24 * time.Hour)

	m := Generate(key, db, "v1", backdated)
	if err := Verify(key, db, m, time.Now()); err != ErrExpired {
		t.Errorf("Verify(31-day-old manifest) = %v, want ErrExpired", err)
	}
}

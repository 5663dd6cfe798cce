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

// Package textscan is the thin, non-cryptographic keyword classifier that
// sits next to the image-scan path. It holds no cryptographic machinery of
// its own beyond the MAC envelope its caller wraps the result in.
package textscan

import "regexp"

// Severity is the tagged outcome of a text scan.
type Severity string

const (
	Safe    Severity = "safe"
	Warning Severity = "warning"
	Blocked Severity = "blocked"
)

// Result is the classifier's verdict, mirroring the wire shape of
// POST /api/scan's "detail" field.
type Result struct {
	Severity       Severity `json:"severity"`
	Reason         string   `json:"reason,omitempty"`
	MatchedKeyword string   `json:"matchedKeyword,omitempty"`
}

// Classifier holds compiled, case-insensitive, word-boundary keyword
// patterns for two lists: blocking keywords always win over warnings.
type Classifier struct {
	blocking []*regexp.Regexp
	warning  []*regexp.Regexp
}

// NewClassifier compiles the blocking and warning keyword lists.
func NewClassifier(blocking, warning []string) (*Classifier, error) {
	b, err := compileAll(blocking)
	if err != nil {
		return nil, err
	}
	w, err := compileAll(warning)
	if err != nil {
		return nil, err
	}
	return &Classifier{blocking: b, warning: w}, nil
}

func compileAll(words []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Classify returns the first blocking match, else the first warning match,
// else Safe.
func (c *Classifier) Classify(text string) Result {
	if kw, ok := firstMatch(c.blocking, text); ok {
		return Result{Severity: Blocked, Reason: "blocked keyword detected", MatchedKeyword: kw}
	}
	if kw, ok := firstMatch(c.warning, text); ok {
		return Result{Severity: Warning, Reason: "warning keyword detected", MatchedKeyword: kw}
	}
	return Result{Severity: Safe}
}

func firstMatch(patterns []*regexp.Regexp, text string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

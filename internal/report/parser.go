// Package report turns one raw bandit JSON report into a per-commit record.
//
// Parsing is tolerant of the document's shape: the analyzer runs against
// arbitrary third-party trees and its output cannot be assumed well formed.
// Only input that is not exactly one JSON document is an error; an empty
// file is what an interrupted analyzer run leaves behind.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/lockwhz/secregress/models"
)

// ErrMalformedReport is returned when the report is not a single JSON document.
var ErrMalformedReport = errors.New("malformed report")

// Parse builds the record for (repo, commit) from the raw report bytes.
func Parse(repo, commit string, data []byte) (models.CommitRecord, error) {
	rec := models.CommitRecord{Repository: repo, Commit: commit, CWEs: []string{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return rec, fmt.Errorf("%w: empty report", ErrMalformedReport)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return rec, fmt.Errorf("%w: trailing data after report", ErrMalformedReport)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return rec, nil
	}
	results, ok := root["results"].([]any)
	if !ok {
		return rec, nil
	}

	cwes := make(map[string]struct{})
	for _, item := range results {
		finding, ok := item.(map[string]any)
		if !ok {
			continue
		}

		switch models.ParseLevel(finding["issue_severity"]) {
		case models.LevelHigh:
			rec.High++
		case models.LevelMedium:
			rec.Medium++
		case models.LevelLow:
			rec.Low++
		}

		switch models.ParseLevel(finding["issue_confidence"]) {
		case models.LevelHigh:
			rec.ConfHigh++
		case models.LevelMedium:
			rec.ConfMedium++
		case models.LevelLow:
			rec.ConfLow++
		}

		if id, ok := cweID(finding["issue_cwe"]); ok {
			cwes[id] = struct{}{}
		}
	}

	rec.CWEs = make([]string, 0, len(cwes))
	for id := range cwes {
		rec.CWEs = append(rec.CWEs, id)
	}
	sort.Strings(rec.CWEs)

	return rec, nil
}

// cweID extracts the canonical string form of issue_cwe.id.
func cweID(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}

	var id string
	switch raw := m["id"].(type) {
	case json.Number:
		// A zero id carries no category.
		if f, err := raw.Float64(); err == nil && f != 0 {
			id = canonicalNumber(raw)
		}
	case string:
		id = strings.TrimSpace(raw)
	}
	return id, id != ""
}

// canonicalNumber renders integral numbers without a fraction ("89", not "89.0").
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// Package evidence implements the append-only evidence bank shared by the
// planning and writing agents. Each record is one line of JSONL plus a raw
// text sidecar file, so a run directory can be replayed byte for byte.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Item is a single extracted finding from a source page.
type Item struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Location   string  `json:"location,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Source describes where a piece of evidence came from.
type Source struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Publisher   string `json:"publisher,omitempty"`
	Author      string `json:"author,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	RetrievedAt string `json:"retrieved_at"`
}

// Evidence is one banked record.
type Evidence struct {
	EvidenceID  string   `json:"evidence_id"`
	Query       string   `json:"query"`
	Source      Source   `json:"source"`
	Summary     string   `json:"summary"`
	Items       []Item   `json:"evidence_items"`
	RawTextRef  string   `json:"raw_text_ref,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
	Tags        []string `json:"tags"`
}

// FormatID renders the canonical evidence id for a sequence number.
func FormatID(n int) string {
	return fmt.Sprintf("ev_%04d", n)
}

// ContentHash fingerprints a page for de-duplication. The same URL fetched
// with the same extracted text always hashes identically.
func ContentHash(url, rawText string) string {
	sum := sha256.Sum256([]byte(url + "\n" + rawText))
	return hex.EncodeToString(sum[:])
}

// Clock returns the current time; swapped in tests for determinism.
type Clock func() time.Time

package evidence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Get for an unknown evidence id.
var ErrNotFound = errors.New("evidence: not found")

// Bank is the append-only evidence store for one run. All mutation goes
// through Add; records are written to evidence.jsonl before they become
// visible, so a crash never leaves the in-memory view ahead of disk.
type Bank struct {
	mu     sync.Mutex
	dir    string
	rawDir string
	log    zerolog.Logger
	clock  Clock
	byID   map[string]*Evidence
	byHash map[string]*Evidence
	order  []string
	nextID int
}

// NewBank opens (or creates) the bank rooted at dir. An existing
// evidence.jsonl is replayed; malformed lines are skipped with a warning and
// the id counter resumes after the highest replayed id.
func NewBank(dir string, log zerolog.Logger, clock Clock) (*Bank, error) {
	if clock == nil {
		clock = time.Now
	}
	rawDir := filepath.Join(dir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence: create bank dir: %w", err)
	}
	b := &Bank{
		dir:    dir,
		rawDir: rawDir,
		log:    log,
		clock:  clock,
		byID:   map[string]*Evidence{},
		byHash: map[string]*Evidence{},
		nextID: 1,
	}
	if err := b.replay(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bank) journalPath() string {
	return filepath.Join(b.dir, "evidence.jsonl")
}

func (b *Bank) replay() error {
	f, err := os.Open(b.journalPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("evidence: open journal: %w", err)
	}
	defer f.Close()

	maxID := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var ev Evidence
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			b.log.Warn().Int("line", line).Err(err).Msg("skipping malformed evidence record")
			continue
		}
		if ev.EvidenceID == "" {
			b.log.Warn().Int("line", line).Msg("skipping evidence record without id")
			continue
		}
		cp := ev
		b.byID[ev.EvidenceID] = &cp
		if ev.ContentHash != "" {
			b.byHash[ev.ContentHash] = &cp
		}
		b.order = append(b.order, ev.EvidenceID)
		var n int
		if _, err := fmt.Sscanf(ev.EvidenceID, "ev_%d", &n); err == nil && n > maxID {
			maxID = n
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("evidence: scan journal: %w", err)
	}
	b.nextID = maxID + 1
	return nil
}

// AddInput is the material needed to bank one page.
type AddInput struct {
	Query   string
	Source  Source
	Summary string
	Items   []Item
	RawText string
	Tags    []string
}

// Add banks a record, assigning the next id, or returns the existing record
// when the (url, raw text) pair was seen before. Deduplication and the raw
// text sidecar only apply when raw text is present; without it every add
// creates a fresh record. The second return reports whether a new record was
// created.
func (b *Bank) Add(in AddInput) (*Evidence, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var hash, rawRef string
	if in.RawText != "" {
		hash = ContentHash(in.Source.URL, in.RawText)
		if existing, ok := b.byHash[hash]; ok {
			return existing, false, nil
		}
	}

	id := FormatID(b.nextID)
	if in.RawText != "" {
		ref, err := b.writeRaw(hash, in.RawText)
		if err != nil {
			return nil, false, err
		}
		rawRef = ref
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	ev := &Evidence{
		EvidenceID:  id,
		Query:       in.Query,
		Source:      in.Source,
		Summary:     in.Summary,
		Items:       in.Items,
		RawTextRef:  rawRef,
		ContentHash: hash,
		Tags:        tags,
	}
	if err := b.appendJournal(ev); err != nil {
		return nil, false, err
	}
	b.byID[id] = ev
	if hash != "" {
		b.byHash[hash] = ev
	}
	b.order = append(b.order, id)
	b.nextID++
	return ev, true, nil
}

func (b *Bank) writeRaw(hash, text string) (string, error) {
	name := fmt.Sprintf("%s_%s.txt", b.clock().UTC().Format("20060102T150405Z"), hash[:12])
	if err := os.WriteFile(filepath.Join(b.rawDir, name), []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("evidence: write raw text: %w", err)
	}
	return filepath.Join("raw", name), nil
}

func (b *Bank) appendJournal(ev *Evidence) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("evidence: marshal record: %w", err)
	}
	f, err := os.OpenFile(b.journalPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("evidence: open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("evidence: append journal: %w", err)
	}
	return nil
}

// Get returns the record for id or ErrNotFound.
func (b *Bank) Get(id string) (*Evidence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev, nil
}

// BulkGet resolves ids, silently skipping unknown ones.
func (b *Bank) BulkGet(ids []string) []*Evidence {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Evidence
	for _, id := range ids {
		if ev, ok := b.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// ListAll returns every record in insertion order.
func (b *Bank) ListAll() []*Evidence {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Evidence, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.byID[id])
	}
	return out
}

// Count reports the number of banked records.
func (b *Bank) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// tokenRe accepts latin words, digits, underscores and CJK ideographs.
var tokenRe = regexp.MustCompile(`[A-Za-z0-9_\x{4E00}-\x{9FFF}]+`)

// Tokenize lowercases text and keeps tokens of at least two runes.
func Tokenize(text string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(tok)) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}

// Score counts how many distinct query tokens occur as substrings of the
// record's searchable text.
func Score(query string, ev *Evidence) int {
	seen := map[string]struct{}{}
	var tokens []string
	for _, tok := range Tokenize(query) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return 0
	}
	var sb strings.Builder
	sb.WriteString(ev.Query)
	sb.WriteString(" ")
	sb.WriteString(ev.Source.Title)
	sb.WriteString(" ")
	sb.WriteString(ev.Source.Publisher)
	sb.WriteString(" ")
	sb.WriteString(ev.Summary)
	for _, it := range ev.Items {
		sb.WriteString(" ")
		sb.WriteString(it.Content)
	}
	hay := strings.ToLower(sb.String())
	score := 0
	for _, tok := range tokens {
		if strings.Contains(hay, tok) {
			score++
		}
	}
	return score
}

// RetrieveScored returns up to topK records scored against query, highest
// first. Ties keep insertion order. Records scoring zero are excluded.
func (b *Bank) RetrieveScored(query string, topK int) []*Evidence {
	b.mu.Lock()
	defer b.mu.Unlock()
	type scored struct {
		ev    *Evidence
		score int
	}
	var hits []scored
	for _, id := range b.order {
		ev := b.byID[id]
		if s := Score(query, ev); s > 0 {
			hits = append(hits, scored{ev, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]*Evidence, len(hits))
	for i, h := range hits {
		out[i] = h.ev
	}
	return out
}

// Package judge scores an outline against a rubric of criteria using the
// model as grader. It is optional: runs without a criteria file skip it.
package judge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/llm"
	"github.com/hyperifyio/goweaver/internal/tags"
)

// Criterion is one rubric entry.
type Criterion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Verdict is the model's grade for one criterion.
type Verdict struct {
	Rating        int    `json:"rating"`
	Justification string `json:"justification"`
}

// Result aggregates all criterion verdicts for an outline. Answer carries the
// graded outline text so the persisted judgement is self-contained.
type Result struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Results  map[string]Verdict `json:"results"`
}

// LoadCriteria reads a rubric file, accepting either a JSON array or JSONL
// with one criterion object per line.
func LoadCriteria(path string) ([]Criterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("judge: read criteria: %w", err)
	}
	var list []Criterion
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var out []Criterion
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var c Criterion
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("judge: malformed criteria line: %w", err)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("judge: no criteria in %s", path)
	}
	return out, nil
}

const defaultTemplate = `You are grading a research report outline.

Question: {question}

Outline:
{answer}

Criterion: {criterion['name']}
{criterion['description']}

Rate how well the outline satisfies the criterion on a 0-10 scale. Respond with ONLY a JSON object: {"rating": 7, "justification": "..."}.`

// RenderTemplate substitutes the placeholders a rubric template may carry.
// Both quote styles inside the criterion placeholders are accepted.
func RenderTemplate(tmpl, question, answer string, c Criterion) string {
	r := strings.NewReplacer(
		"{question}", question,
		"{answer}", answer,
		"{criterion['name']}", c.Name,
		`{criterion["name"]}`, c.Name,
		"{criterion['description']}", c.Description,
		`{criterion["description"]}`, c.Description,
	)
	return r.Replace(tmpl)
}

// Judge grades outlines criterion by criterion.
type Judge struct {
	Client   llm.Client
	Template string // empty for the built-in prompt
	Log      zerolog.Logger
}

// Run grades the outline against every criterion. A criterion whose reply
// cannot be parsed is skipped with a warning; transport errors abort the
// whole judgement.
func (j *Judge) Run(ctx context.Context, question, outlineText string, criteria []Criterion) (*Result, error) {
	tmpl := j.Template
	if tmpl == "" {
		tmpl = defaultTemplate
	}
	res := &Result{Question: question, Answer: outlineText, Results: map[string]Verdict{}}
	for _, c := range criteria {
		out, err := j.Client.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a strict evaluator."},
			{Role: llm.RoleUser, Content: RenderTemplate(tmpl, question, outlineText, c)},
		}, 0.0)
		if err != nil {
			return nil, fmt.Errorf("judge: criterion %q: %w", c.Name, err)
		}
		v, ok := parseVerdict(out)
		if !ok {
			j.Log.Warn().Str("criterion", c.Name).Msg("unparseable judgement reply")
			continue
		}
		res.Results[c.Name] = v
	}
	return res, nil
}

// parseVerdict extracts a rating object, salvaging from the first '{' to the
// last '}' when the reply wraps the JSON in prose.
func parseVerdict(raw string) (Verdict, bool) {
	try := func(data []byte) (Verdict, bool) {
		var v Verdict
		if err := json.Unmarshal(data, &v); err != nil {
			return Verdict{}, false
		}
		if v.Rating < 0 {
			v.Rating = 0
		}
		if v.Rating > 10 {
			v.Rating = 10
		}
		return v, true
	}
	if data := tags.ExtractJSONObject(raw); data != nil {
		if v, ok := try(data); ok {
			return v, true
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return try([]byte(raw[start : end+1]))
	}
	return Verdict{}, false
}

package judge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goweaver/internal/llm"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCriteriaJSONArray(t *testing.T) {
	path := writeFile(t, "c.json", `[{"name":"coverage","description":"covers the question"}]`)
	got, err := LoadCriteria(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "coverage" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadCriteriaJSONL(t *testing.T) {
	path := writeFile(t, "c.jsonl", "{\"name\":\"a\",\"description\":\"d1\"}\n\n{\"name\":\"b\",\"description\":\"d2\"}\n")
	got, err := LoadCriteria(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Name != "b" {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadCriteriaMalformed(t *testing.T) {
	path := writeFile(t, "c.jsonl", "not json\n")
	if _, err := LoadCriteria(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderTemplateBothQuoteStyles(t *testing.T) {
	tmpl := `Q={question} A={answer} N={criterion['name']} D={criterion["description"]}`
	got := RenderTemplate(tmpl, "q", "a", Criterion{Name: "n", Description: "d"})
	if got != "Q=q A=a N=n D=d" {
		t.Fatalf("got %q", got)
	}
}

func TestJudgeRun(t *testing.T) {
	replies := map[string]string{
		"coverage": `{"rating": 8, "justification": "good"}`,
		"depth":    `Sure! Here is my grade: {"rating": 99, "justification": "deep"} hope that helps`,
		"clarity":  `no json at all`,
	}
	client := llm.Func(func(_ context.Context, msgs []llm.Message, temp float32) (string, error) {
		if temp != 0.0 {
			t.Errorf("temperature = %v", temp)
		}
		if msgs[0].Role != llm.RoleSystem {
			t.Errorf("first message role = %s", msgs[0].Role)
		}
		for name, reply := range replies {
			if strings.Contains(msgs[1].Content, "Criterion: "+name) {
				return reply, nil
			}
		}
		t.Errorf("unmatched prompt: %q", msgs[1].Content)
		return "", nil
	})
	j := &Judge{Client: client, Log: zerolog.Nop()}
	res, err := j.Run(context.Background(), "question", "## outline", []Criterion{
		{Name: "coverage"}, {Name: "depth"}, {Name: "clarity"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Question != "question" || res.Answer != "## outline" {
		t.Fatalf("question/answer = %q / %q", res.Question, res.Answer)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %+v", res.Results)
	}
	if v := res.Results["coverage"]; v.Rating != 8 || v.Justification != "good" {
		t.Fatalf("coverage = %+v", v)
	}
	if v := res.Results["depth"]; v.Rating != 10 {
		t.Fatalf("rating not clamped: %+v", v)
	}
	if _, ok := res.Results["clarity"]; ok {
		t.Fatal("unparseable reply was not skipped")
	}
}

// Command openai-stub is a minimal OpenAI-compatible chat endpoint that
// scripts deterministic replies for every goweaver agent, so a full run can
// be exercised locally without a real model.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "stub-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		all := ""
		for _, m := range req.Messages {
			all += m.Content + "\n"
		}

		var content string
		switch {
		case strings.Contains(all, "Planning Step:"):
			switch {
			case strings.Contains(all, "Banked evidence:\n<none>"):
				content = `<tool_call>{"name": "search", "arguments": {"query": ["stub topic overview", "stub topic details"], "goal": "gather basics"}}</tool_call>`
			case strings.Contains(all, "Current outline:\n<none>"):
				content = "<write_outline># Report\n\n## Overview\n<citation>ev_0001</citation>\n\n## Details\n<citation>ev_0002</citation></write_outline>"
			default:
				content = "<terminate>outline complete</terminate>"
			}
		case strings.Contains(all, "Return a concise summary"):
			content = "The page describes the stub topic in enough detail to cite."
		case strings.Contains(all, "Extract up to"):
			content = `{"items": [{"type": "fact", "content": "The stub topic has one canonical fact.", "confidence": 0.9}]}`
		case strings.Contains(all, "selected_ranks"):
			content = `{"selected_ranks": [1, 2], "rationale": "most authoritative"}`
		case strings.Contains(all, "Decide next action."):
			switch {
			case !strings.Contains(all, "Latest retrieval:") && strings.Contains(all, "Current draft:\n<none>"):
				content = `<tool_call>{"name": "retrieve", "arguments": {"query": "stub topic", "top_k": 8}}</tool_call>`
			case strings.Contains(all, "Current draft:\n<none>"):
				content = "<write>The stub section text, grounded in evidence [^ev_0001].</write>"
			default:
				content = "<terminate>section done</terminate>"
			}
		case strings.Contains(all, "<write_outline>"):
			content = "<write_outline># Report\n\n## Overview</write_outline>"
		case strings.Contains(all, "Rate how well"):
			content = `{"rating": 7, "rationale": "covers the question"}`
		default:
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

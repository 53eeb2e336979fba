package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fusae/sentinel/internal/llm"
	"github.com/fusae/sentinel/internal/store"
)

const summaryPrompt = `You are writing a short briefing for a hospital reputation monitoring dashboard.

Here are the negative opinions currently under review:

%s

Write a TL;DR (3-5 bullet points) summarizing the most important issues across ALL of them.

Respond with ONLY this JSON:
{"tldr_bullets": ["First key takeaway", "Second key takeaway"]}`

const insightPrompt = `You are writing a deeper analysis of one hospital reputation opinion for an internal reviewer.

Hospital: %s
Source: %s
Title: %s
Content:
%s

Write a 2-3 paragraph analysis: what happened, why it matters, and what the hospital should watch for. Use markdown for emphasis.

Respond with ONLY this JSON:
{"insight": "Your analysis here."}`

type aiSummaryRequest struct {
	Opinions []string `json:"opinions"`
}

// handleAISummary serves POST /api/ai/summary: a global briefing over a
// caller-supplied set of opinion ids, falling back to a deterministic
// bullet list when no provider is configured or the call fails — the same
// shape the donor's Composer.generateTLDR uses.
func (s *Server) handleAISummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req aiSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	var opinions []store.Sentiment
	for _, id := range req.Opinions {
		sm, err := s.db.GetSentiment(id)
		if err == nil && sm != nil {
			opinions = append(opinions, *sm)
		}
	}
	if len(opinions) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"tldr": "No opinions supplied."})
		return
	}

	tldr := s.generateSummary(r.Context(), opinions)
	writeJSON(w, http.StatusOK, map[string]any{"tldr": tldr})
}

func (s *Server) generateSummary(ctx context.Context, opinions []store.Sentiment) string {
	if s.provider == nil || !s.provider.IsConfigured() {
		return fallbackSummary(opinions)
	}

	var parts []string
	for _, o := range opinions {
		reason := ""
		if o.Reason != nil {
			reason = *o.Reason
		}
		parts = append(parts, fmt.Sprintf("- [%s] %s (%s): %s", o.Severity, o.Title, o.HospitalName, reason))
	}

	prompt := fmt.Sprintf(summaryPrompt, strings.Join(parts, "\n"))
	text, err := s.provider.Generate(ctx, prompt, 512)
	if err != nil || text == "" {
		return fallbackSummary(opinions)
	}

	obj, ok := llm.ExtractJSONObject(text)
	if !ok {
		return fallbackSummary(opinions)
	}
	bullets, ok := obj["tldr_bullets"].([]any)
	if !ok {
		return fallbackSummary(opinions)
	}
	var lines []string
	for _, b := range bullets {
		if str, ok := b.(string); ok {
			lines = append(lines, "- "+str)
		}
	}
	if len(lines) == 0 {
		return fallbackSummary(opinions)
	}
	return strings.Join(lines, "\n")
}

func fallbackSummary(opinions []store.Sentiment) string {
	var lines []string
	for _, o := range opinions {
		lines = append(lines, fmt.Sprintf("- [%s] %s (%s)", o.Severity, o.Title, o.HospitalName))
	}
	return strings.Join(lines, "\n")
}

type aiInsightRequest struct {
	Opinion string `json:"opinion"`
}

// handleAIInsight serves POST /api/ai/insight: a per-item deep analysis,
// cached to Sentiment.insight so repeated requests don't re-call the LLM.
func (s *Server) handleAIInsight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req aiInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	sm, err := s.db.GetSentiment(req.Opinion)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if sm == nil {
		writeError(w, http.StatusNotFound, "not_found", "no such opinion")
		return
	}

	if sm.Insight != nil && *sm.Insight != "" {
		writeJSON(w, http.StatusOK, map[string]any{"insight": *sm.Insight})
		return
	}

	insight := s.generateInsight(r.Context(), *sm)
	if err := s.db.SetSentimentInsight(sm.SentimentID, insight); err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insight": insight})
}

func (s *Server) generateInsight(ctx context.Context, sm store.Sentiment) string {
	if s.provider == nil || !s.provider.IsConfigured() {
		return fallbackInsight(sm)
	}

	source := ""
	if sm.Source != nil {
		source = *sm.Source
	}
	content := ""
	if sm.Content != nil {
		content = *sm.Content
	}

	prompt := fmt.Sprintf(insightPrompt, sm.HospitalName, source, sm.Title, content)
	text, err := s.provider.Generate(ctx, prompt, 800)
	if err != nil || text == "" {
		return fallbackInsight(sm)
	}

	obj, ok := llm.ExtractJSONObject(text)
	if !ok {
		return fallbackInsight(sm)
	}
	if insight, ok := obj["insight"].(string); ok && insight != "" {
		return insight
	}
	return fallbackInsight(sm)
}

func fallbackInsight(sm store.Sentiment) string {
	reason := ""
	if sm.Reason != nil {
		reason = *sm.Reason
	}
	return fmt.Sprintf("%s reported for %s at severity %s: %s", sm.Title, sm.HospitalName, sm.Severity, reason)
}

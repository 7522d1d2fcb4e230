// Package triage asks a language model for a second opinion on a
// classification. The assessment is informational only and never overrides
// the trained model's prediction.
package triage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/openai"

	"github.com/apksift/apksift/pkg/models"
)

const systemPrompt = `You are a mobile security analyst. Your task is to review the static-analysis
signals extracted from an Android APK together with the verdict of a trained
malware classifier, and assess whether the verdict is plausible.

CONTEXT:
- The classifier was trained on permission flags plus opcode and API-call
  histograms. You see the same signals it saw.
- "Dangerous permissions" are the requested android.permission.* entries the
  analysis surfaced, in discovery order.

WHAT TO LOOK FOR:
1. Permission combinations typical of spyware (SMS + contacts + location)
2. Premium-SMS abuse patterns (SEND_SMS without a messaging purpose)
3. Reflection/crypto-heavy API profiles suggesting packing or obfuscation
4. Histogram profiles wildly out of line with the declared package purpose

JUDGMENT CRITERIA:
- A single broad permission is weak evidence on its own
- Agreeing with the classifier is fine; explain why either way

Provide a concise justification for your assessment.`

// Assessment is the structured result of an LLM review
type Assessment struct {
	AgreesWithVerdict bool     `json:"agrees_with_verdict"`
	Confidence        float64  `json:"confidence"`
	Justification     string   `json:"justification"`
	Indicators        []string `json:"indicators,omitempty"`
}

// Item bundles what the reviewer sees for one artifact
type Item struct {
	Summary  *models.Summary
	Opcodes  map[string]int
	APICalls map[string]int
}

// Reviewer handles LLM-backed review of classification summaries
type Reviewer struct {
	model     fantasy.LanguageModel
	semaphore chan struct{} // limits concurrent reviews
}

// NewReviewer creates a reviewer with the specified concurrency limit
func NewReviewer(apiKey string, concurrencyLimit int) (*Reviewer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for LLM triage")
	}

	provider, err := openai.New(openai.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
	}

	ctx := context.Background()
	model, err := provider.LanguageModel(ctx, "gpt-5-mini")
	if err != nil {
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}

	return &Reviewer{
		model:     model,
		semaphore: make(chan struct{}, concurrencyLimit),
	}, nil
}

// ReviewAll reviews several artifacts in parallel, bounded by the
// reviewer's concurrency limit. Results are positionally aligned with the
// input; a failed review leaves a nil entry and contributes an error.
func (r *Reviewer) ReviewAll(ctx context.Context, items []Item) ([]*Assessment, error) {
	if len(items) == 0 {
		return nil, nil
	}

	log.Printf("Starting LLM triage for %d artifacts (max %d concurrent)", len(items), cap(r.semaphore))

	assessments := make([]*Assessment, len(items))
	errChan := make(chan error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(idx int, it Item) {
			defer wg.Done()

			select {
			case r.semaphore <- struct{}{}:
			case <-ctx.Done():
				errChan <- fmt.Errorf("triage cancelled for %s", it.Summary.Hash)
				return
			}

			assessment, err := r.Review(ctx, it)
			<-r.semaphore

			if err != nil {
				errChan <- fmt.Errorf("triage failed for %s: %w", it.Summary.Hash, err)
				return
			}
			assessments[idx] = assessment
		}(i, item)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return assessments, err // fail fast on the first error
	}

	log.Printf("Completed LLM triage for %d artifacts", len(items))
	return assessments, nil
}

// Review asks the model to assess one artifact's verdict
func (r *Reviewer) Review(ctx context.Context, item Item) (*Assessment, error) {
	prompt := formatReviewPrompt(item)

	assessment := Assessment{}
	submitTool := fantasy.NewAgentTool(
		"submit_assessment",
		"Submit your assessment of the classifier verdict", func(
			_ context.Context,
			input Assessment,
			_ fantasy.ToolCall,
		) (fantasy.ToolResponse, error) {
			assessment = input
			return fantasy.ToolResponse{
				Content: "Assessment received",
			}, nil
		})

	agent := fantasy.NewAgent(r.model, fantasy.WithSystemPrompt(systemPrompt), fantasy.WithTools(submitTool))
	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("agent generation failed: %w", err)
	}

	log.Printf("  [triage] response for %s:\n%s", item.Summary.Hash, result.Response.Content.Text())

	return &assessment, nil
}

// formatReviewPrompt lays out the summary and the strongest histogram
// signals for the model
func formatReviewPrompt(item Item) string {
	var sb strings.Builder

	s := item.Summary
	sb.WriteString(fmt.Sprintf("Review the classification of APK %s (package: %s)\n\n", s.Hash, s.PackageName))
	sb.WriteString(fmt.Sprintf("CLASSIFIER VERDICT: %s\n", s.Verdict))
	if s.KnownMalware {
		sb.WriteString("NOTE: hash matches a known-malware list entry\n")
	}

	if len(s.DangerousPermissions) > 0 {
		sb.WriteString("\nDangerous permissions:\n")
		for _, perm := range s.DangerousPermissions {
			sb.WriteString(fmt.Sprintf("  - %s\n", perm))
		}
	}

	writeTopCounts(&sb, "Top opcodes", item.Opcodes, 15)
	writeTopCounts(&sb, "Top API calls", item.APICalls, 15)

	sb.WriteString("\nUse the submit_assessment tool to provide your assessment.")

	return sb.String()
}

func writeTopCounts(sb *strings.Builder, title string, counts map[string]int, limit int) {
	if len(counts) == 0 {
		return
	}

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	sb.WriteString(fmt.Sprintf("\n%s:\n", title))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("  - %s: %d\n", e.name, e.count))
	}
}

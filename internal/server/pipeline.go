package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/apksift/apksift/internal/pipeline"
	"github.com/apksift/apksift/internal/triage"
	"github.com/apksift/apksift/pkg/models"
)

// ProgressSender interface for sending progress updates
type ProgressSender interface {
	SendMessage(msg Message)
	SendLog(message, level string)
	SendProgress(percent int, stage, message string)
	SendError(message string, err error)
}

// Pipeline wraps the classification pipeline for WebSocket use. The
// classifier and reviewer are loaded once at startup and shared read-only
// across runs.
type Pipeline struct {
	classifier *pipeline.Pipeline
	reviewer   *triage.Reviewer // nil when no API key is configured

	// Progress sender
	sender ProgressSender
}

// NewPipeline creates a new server pipeline instance
func NewPipeline(classifier *pipeline.Pipeline, reviewer *triage.Reviewer, sender ProgressSender) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		reviewer:   reviewer,
		sender:     sender,
	}
}

// log sends a log message both to the WebSocket client and to the console
func (p *Pipeline) log(message, level string) {
	// Send to WebSocket client
	p.sender.SendLog(message, level)

	// Also log to console with level indicator
	prefix := "[INFO]"
	switch level {
	case "success":
		prefix = "[SUCCESS]"
	case "warning":
		prefix = "[WARN]"
	case "error":
		prefix = "[ERROR]"
	}
	log.Printf("%s %s", prefix, message)
}

// Run executes a full classification run for one submitted report
func (p *Pipeline) Run(ctx context.Context, reportJSON []byte) error {
	runID := uuid.NewString()

	p.log(fmt.Sprintf("Starting classification run %s...", runID), "info")

	// Step 1: Parse the submitted report
	p.sender.SendProgress(0, "load", "Parsing scanner report...")
	var report models.AnalysisReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return fmt.Errorf("failed to parse report: %w", err)
	}
	if report.Empty() {
		return &models.MissingInputError{Reason: "submitted report has no analyzable content"}
	}
	p.sender.SendProgress(20, "load", fmt.Sprintf("Report parsed: %s", displayName(&report)))

	// Step 2: Flatten, align, and predict
	p.sender.SendProgress(40, "predict", "Aligning features and predicting...")
	result, err := p.classifier.Run(&report)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	summary := result.Summary
	p.log(fmt.Sprintf("Verdict for %s: %s (%d dangerous permissions)",
		summary.Hash, summary.Verdict, len(summary.DangerousPermissions)), "success")
	p.sender.SendMessage(NewVerdictMessage(runID, summary))
	p.sender.SendProgress(70, "predict", "Prediction complete")

	// Step 3: Optional LLM second opinion (70% - 100%)
	if p.reviewer != nil {
		p.sender.SendProgress(70, "triage", "Requesting LLM second opinion...")
		assessment, err := p.reviewer.Review(ctx, triage.Item{
			Summary:  summary,
			Opcodes:  report.Opcodes,
			APICalls: report.APICalls,
		})
		if err != nil {
			// Triage is informational; a failure downgrades to a warning
			p.log(fmt.Sprintf("LLM triage failed: %v", err), "warning")
		} else {
			p.sender.SendMessage(NewTriageMessage(runID, assessment))
		}
	}
	p.sender.SendProgress(100, "triage", "Run complete")

	p.sender.SendMessage(NewCompleteMessage(runID, true, "Classification complete"))
	p.log("Classification run complete", "success")
	return nil
}

func displayName(report *models.AnalysisReport) string {
	if report.Identity.PackageName != "" {
		return report.Identity.PackageName
	}
	if report.Identity.SHA256 != "" {
		return report.Identity.SHA256
	}
	return models.SentinelUnavailable
}

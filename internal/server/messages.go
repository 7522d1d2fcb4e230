package server

import (
	"encoding/json"
	"fmt"

	"github.com/apksift/apksift/internal/triage"
	"github.com/apksift/apksift/pkg/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server
	TypeClassify MessageType = "classify" // Client sends a scanner report to classify
	TypePing     MessageType = "ping"     // Keep-alive

	// Server -> Client
	TypeProgress MessageType = "progress" // Progress updates
	TypeLog      MessageType = "log"      // Log messages for terminal
	TypeVerdict  MessageType = "verdict"  // Classification summary
	TypeTriage   MessageType = "triage"   // LLM second-opinion assessment
	TypeComplete MessageType = "complete" // Run complete
	TypeError    MessageType = "error"    // Error message
)

// Message is the base WebSocket message structure
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClassifyPayload sent by client to start a classification run
type ClassifyPayload struct {
	Report json.RawMessage `json:"report"` // Raw scanner report JSON
}

// ProgressPayload for progress bar updates
type ProgressPayload struct {
	Percent int    `json:"percent"` // 0-100
	Stage   string `json:"stage"`   // "load", "flatten", "align", "predict", "triage"
	Message string `json:"message"` // Human-readable status
}

// LogPayload for terminal output
type LogPayload struct {
	Message string `json:"message"`         // Log message
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
}

// VerdictPayload carries the classification summary for a run
type VerdictPayload struct {
	RunID   string          `json:"run_id"`
	Summary *models.Summary `json:"summary"`
}

// TriagePayload carries the LLM assessment for a run
type TriagePayload struct {
	RunID      string             `json:"run_id"`
	Assessment *triage.Assessment `json:"assessment"`
}

// CompletePayload sent when a run is done
type CompletePayload struct {
	RunID   string `json:"run_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Helper functions to create messages

func NewProgressMessage(percent int, stage, message string) Message {
	payload := ProgressPayload{
		Percent: percent,
		Stage:   stage,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeProgress, Payload: payloadBytes}
}

func NewLogMessage(message, level string) Message {
	payload := LogPayload{
		Message: message,
		Level:   level,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeLog, Payload: payloadBytes}
}

func NewVerdictMessage(runID string, summary *models.Summary) Message {
	payload := VerdictPayload{
		RunID:   runID,
		Summary: summary,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeVerdict, Payload: payloadBytes}
}

func NewTriageMessage(runID string, assessment *triage.Assessment) Message {
	payload := TriagePayload{
		RunID:      runID,
		Assessment: assessment,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeTriage, Payload: payloadBytes}
}

func NewCompleteMessage(runID string, success bool, message string) Message {
	payload := CompletePayload{
		RunID:   runID,
		Success: success,
		Message: message,
	}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeComplete, Payload: payloadBytes}
}

func NewErrorMessage(message string, err error) Message {
	errMsg := message
	if err != nil {
		errMsg = fmt.Sprintf("%s: %v", message, err)
	}
	payload := ErrorPayload{Message: errMsg}
	payloadBytes, _ := json.Marshal(payload)
	return Message{Type: TypeError, Payload: payloadBytes}
}

// ParseClassifyPayload extracts the classify payload from a message
func ParseClassifyPayload(msg Message) (*ClassifyPayload, error) {
	var payload ClassifyPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse classify payload: %w", err)
	}
	if len(payload.Report) == 0 {
		return nil, fmt.Errorf("classify payload has no report")
	}
	return &payload, nil
}

package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeStepError   EventType = "step_error"
	EventTypeAction      EventType = "action"
	EventTypeFeedback    EventType = "feedback"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeReadiness   EventType = "readiness"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(chatID, requestID string, stepCount int) {
	l.Log(Event{
		Type:      EventTypePlan,
		ChatID:    chatID,
		RequestID: requestID,
		Data:      map[string]any{"steps": stepCount},
	})
}

func (l *Logger) LogStep(chatID, requestID, action, description string) {
	l.Log(Event{
		Type:      EventTypeStep,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]string{
			"action":      action,
			"description": description,
		},
	})
}

func (l *Logger) LogStepError(chatID, requestID, action string, err error) {
	l.Log(Event{
		Type:      EventTypeStepError,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]string{
			"action": action,
			"error":  fmt.Sprintf("%v", err),
		},
	})
}

func (l *Logger) LogPolicyCheck(chatID, requestID, action, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]string{
			"action": action,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogAction(chatID, requestID, actionType, description, tabID string) {
	l.Log(Event{
		Type:      EventTypeAction,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]string{
			"type":        actionType,
			"description": description,
			"tab_id":      tabID,
		},
	})
}

func (l *Logger) LogReadiness(chatID, requestID, tabID, status string) {
	l.Log(Event{
		Type:      EventTypeReadiness,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]string{
			"tab_id": tabID,
			"status": status,
		},
	})
}

func (l *Logger) LogFeedback(msgType, text, level string) {
	l.Log(Event{
		Type: EventTypeFeedback,
		Data: map[string]string{
			"message": msgType,
			"text":    text,
			"level":   level,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, requestID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:      EventTypeLLM,
		ChatID:    chatID,
		RequestID: requestID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}

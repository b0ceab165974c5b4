package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseError reports an extraction response that could not be turned into
// candidates. It is recoverable: callers treat it as an empty batch.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
	}
	return "extraction: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// Candidate is one event proposed by the extraction service.
type Candidate struct {
	Title         string   `json:"title"`
	Description   *string  `json:"description,omitempty"`
	Location      *string  `json:"location,omitempty"`
	Date          *string  `json:"date,omitempty"`
	StartTime     *string  `json:"startTime,omitempty"`
	EndTime       *string  `json:"endTime,omitempty"`
	IsAllDay      *bool    `json:"isAllDay,omitempty"`
	Recurrence    *string  `json:"recurrence,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Action        string   `json:"action,omitempty"`
	TargetEventID *string  `json:"targetEventId,omitempty"`
	Scope         *string  `json:"scope,omitempty"`
	InstanceDate  *string  `json:"instanceDate,omitempty"`
}

type document struct {
	Events *[]Candidate `json:"events"`
}

// ParseDocument decodes an `{"events":[...]}` document. Model output is often
// wrapped in a markdown fence or carries trailing commas, so the text is
// repaired before decoding.
func ParseDocument(raw string) ([]Candidate, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	var doc document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, &ParseError{Reason: "malformed JSON", Err: repairErr}
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return nil, &ParseError{Reason: "malformed JSON", Err: err}
		}
	}
	if doc.Events == nil {
		return nil, &ParseError{Reason: `missing "events" array`}
	}
	return *doc.Events, nil
}

func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

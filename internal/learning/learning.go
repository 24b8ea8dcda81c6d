// Package learning evolves a user's classification rules and profile.
//
// Both learners follow the same loop: render the current list with positional
// ids, ask the model for an operation list one window at a time, and apply the
// operations with the oplog engine before moving to the next window.
package learning

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/metrics"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/oplog"
)

// ErrEmptyReply is returned when a learning request yields no JSON object.
var ErrEmptyReply = errors.New("learning request returned no usable payload")

// Learner labels for metrics and logs.
const (
	learnerAnalysis = "feedback_analysis"
	learnerRules    = "rules"
	learnerProfile  = "profile"
)

// Documents is the read side of storage the learners need.
type Documents interface {
	LoadDocument(ctx context.Context, userID, documentID string) (*model.Document, error)
	ListUserDocuments(ctx context.Context, userID string) ([]string, error)
}

// complete sends a single-turn JSON request and records its outcome.
func complete(ctx context.Context, gateway llm.Gateway, learner, prompt string) (map[string]any, error) {
	reply, err := gateway.CompleteText(ctx, llm.UserMessage(prompt), llm.FormatJSON)
	if err != nil {
		metrics.LearningRequests.WithLabelValues(learner, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%s request: %w", learner, err)
	}
	data := llm.ParseJSON(reply)
	if len(data) == 0 {
		metrics.LearningRequests.WithLabelValues(learner, metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("%s request: %w", learner, ErrEmptyReply)
	}
	metrics.LearningRequests.WithLabelValues(learner, metrics.OutcomeOK).Inc()
	return data, nil
}

// requestOperations asks for an operation list and decodes it with engine.
func requestOperations(ctx context.Context, gateway llm.Gateway, learner, prompt string, engine oplog.Engine, keys oplog.DecodeSpec) ([]oplog.Operation, map[string]any, error) {
	data, err := complete(ctx, gateway, learner, prompt)
	if err != nil {
		return nil, nil, err
	}
	return engine.Decode(llm.Slice(data, "operations"), keys), data, nil
}

func windows(n, size int) int {
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}

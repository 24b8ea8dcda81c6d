package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step in errors, logs and metrics.
type Stage string

// Pipeline stages in execution order.
const (
	StageTranscribe     Stage = "transcribe"
	StageRelevance      Stage = "relevance"
	StageRecognition    Stage = "recognition"
	StageClassification Stage = "classification"
	StageIntent         Stage = "intent"
	StageTags           Stage = "tags"
	StageStructure      Stage = "structure"
)

var (
	// ErrInvalidImage marks an upload whose image is not a receipt.
	ErrInvalidImage = errors.New("image is not a receipt")
	// ErrUnparseable marks a required stage whose reply held no usable payload.
	ErrUnparseable = errors.New("model reply could not be parsed")
)

// InvalidImageError carries the model's reason for rejecting an image.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	if e.Reason == "" {
		return ErrInvalidImage.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidImage, e.Reason)
}

// Is matches ErrInvalidImage.
func (e *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage
}

// StageError is a fatal failure of a required stage.
type StageError struct {
	Err   error
	Stage Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

package models

import "fmt"

// ModelLoadError means the trained model artifact could not be deserialized.
// Fatal for the run: no partial prediction is returned.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model artifact %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// MissingInputError means the input report or record batch was empty or
// absent. Surfaced before alignment is attempted.
type MissingInputError struct {
	Reason string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %s", e.Reason)
}

package defs

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is returned by a run stopped on caller request.
	ErrTerminated = errors.New("generation terminated")
	// ErrCaptureEmpty: recorder and stream were fine but not a byte was captured.
	ErrCaptureEmpty = errors.New("capture produced no data")
)

// ValidationError reports a missing or invalid input, before any resource is acquired.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseError carries the offending raw line when there is one.
type ParseError struct {
	Format string
	LineNo int // 1-based, 0 when not tied to a line
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("lyrics (%s) line %d %q: %s", e.Format, e.LineNo, e.Line, e.Reason)
	}
	if e.Format != "" {
		return fmt.Sprintf("lyrics (%s): %s", e.Format, e.Reason)
	}
	return "lyrics: " + e.Reason
}

type ResourceLoadError struct {
	Name string
	Err  error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("can't load %s: %v", e.Name, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// CaptureEnvironmentError means no stream or no recorder could be created at all.
type CaptureEnvironmentError struct {
	Err error
}

func (e *CaptureEnvironmentError) Error() string {
	return fmt.Sprintf("capture unavailable: %v", e.Err)
}

func (e *CaptureEnvironmentError) Unwrap() error { return e.Err }

type CaptureEmptyError struct {
	Profile string
}

func (e *CaptureEmptyError) Error() string {
	return fmt.Sprintf("recorder (%s) finished without data, check codec and audio routing", e.Profile)
}

func (e *CaptureEmptyError) Is(target error) bool { return target == ErrCaptureEmpty }

type PlaybackError struct {
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("audio playback failed: %v", e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Package translate wraps external machine-translation providers behind a
// single capability: translate text into a target language, optionally
// hinting the source language.
//
// Providers are networked and fallible; no retry is built in. Callers decide
// what a failed translation means for delivery.
package translate

import (
	"context"
	"errors"
)

// SourceAuto asks the provider to detect the source language.
const SourceAuto = "auto"

// Result is a completed translation.
type Result struct {
	// Text is the translated text.
	Text string
	// DetectedSource is the source language the provider reported (or the
	// caller-supplied source when the provider did not detect one).
	DetectedSource string
}

// Translator is the translation capability consumed by the relay.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error)
}

var errMissingTarget = errors.New("translate: target language is required")

// Noop passes text through unchanged. Used when no provider is configured.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _, sourceLang string) (Result, error) {
	return Result{Text: text, DetectedSource: sourceLang}, nil
}

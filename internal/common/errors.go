package common

import "errors"

// Sentinel errors for the scan pipeline's error taxonomy. Components wrap
// these with fmt.Errorf("...: %w", ErrX) so callers can dispatch on errors.Is without
// parsing messages.
var (
	// ErrTransient covers transient_listing / transient_fetch / transient_llm: retry
	// in place with backoff, surface only after the retry budget is exhausted.
	ErrTransient = errors.New("transient error")

	// ErrOversize is returned by the fetcher when an object exceeds max_object_bytes.
	ErrOversize = errors.New("object exceeds size cap")

	// ErrUnsupportedExtension is returned when a listed key's extension isn't.pdf/.docx.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrCorrupt covers corrupt_document / extraction_empty: the document is skipped,
	// the cursor advances, and it is not retried within the same run.
	ErrCorrupt = errors.New("document corrupt or unreadable")

	// ErrDocumentTimeout is returned when a single document exceeds its processing
	// deadline; the worker tags it processing-timeout and advances the cursor.
	ErrDocumentTimeout = errors.New("document processing timeout")

	// ErrHallucinatedQuote marks a classifier match whose validation_quote failed
	// post-validation against the report-type lexicon. Not a run-level error.
	ErrHallucinatedQuote = errors.New("validation quote failed lexicon check")

	// ErrMetadataMissing names the missing-metadata case. The metadata client does
	// not return it: a failed lookup is ErrTransient and an unknown project is a nil
	// result, and the matcher applies the fail-closed rule (§4.5) to both rather
	// than treating either as fatal.
	ErrMetadataMissing = errors.New("project metadata unavailable")

	// ErrMemoryPressure signals the worker should pause the job and preserve its
	// checkpoint; the scheduler's next tick re-enqueues it.
	ErrMemoryPressure = errors.New("process memory above pause ceiling")

	// ErrFatalConfig and ErrAuthFailure mark a job ERROR with no automatic retry.
	ErrFatalConfig = errors.New("fatal configuration error")
	ErrAuthFailure = errors.New("authentication failure")

	// ErrCancelled is the typed cancellation signal propagated through a worker's
	// per-document loop return value.
	ErrCancelled = errors.New("job cancelled by user")
)

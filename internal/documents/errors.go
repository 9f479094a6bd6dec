package documents

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrInsufficientText = errors.New("insufficient extractable text")
)

// User-facing messages for upload results and stored document errors.
const (
	msgUnsupportedFile   = "Only PDF files are supported"
	msgNoText            = "Could not extract text"
	msgInsufficientText  = "Could not extract sufficient text from PDF. The file may be scanned or image-based."
	noteEnrichmentFailed = "Text extracted but structured analysis failed"
	noteEnrichmentQueued = "Structured analysis queued"
)

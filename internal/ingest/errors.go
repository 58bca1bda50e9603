package ingest

import "errors"

// Source-level failures. Ingestion returning one of these leaves no partial
// dataset behind.
var (
	ErrEmptySource       = errors.New("ingest: source is empty")
	ErrUnreadableSource  = errors.New("ingest: source unreadable")
	ErrUnsupportedFormat = errors.New("ingest: unsupported source format")
	ErrMissingHeader     = errors.New("ingest: header row missing")
	ErrMissingColumn     = errors.New("ingest: required column missing")
)

// ErrNoDataset is returned by the store before the first successful ingest.
var ErrNoDataset = errors.New("ingest: no active dataset")

// IsSourceError reports whether err describes a defect of the source file
// rather than an internal failure.
func IsSourceError(err error) bool {
	return errors.Is(err, ErrEmptySource) ||
		errors.Is(err, ErrUnreadableSource) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrMissingHeader) ||
		errors.Is(err, ErrMissingColumn)
}

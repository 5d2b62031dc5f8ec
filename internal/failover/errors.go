package failover

import "errors"

var (
	// ErrChannelNotFound is returned by resolution when the channel is unknown,
	// has no candidates, or none of its candidates is alive.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrStoreCorrupt is returned when the backing document exists but is not
	// a JSON object of string arrays.
	ErrStoreCorrupt = errors.New("mapping document corrupt")

	// ErrDocumentNotExist is returned when the backing document is missing.
	ErrDocumentNotExist = errors.New("mapping document does not exist")

	// ErrProbeFailed is returned by a Prober that could not run its check at all.
	ErrProbeFailed = errors.New("probe failed")

	// ErrIngestParseFailed marks an inbox file that could not be converted.
	ErrIngestParseFailed = errors.New("ingest parse failed")
)

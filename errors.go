package veglens

import "errors"

var (
	// ErrInvalidInput is returned when the request carries no OCR texts
	// or more than the allowed number of them.
	ErrInvalidInput = errors.New("veglens: invalid input")

	// ErrNoText is returned when OCR produced no non-whitespace text
	// across all images.
	ErrNoText = errors.New("veglens: no text extracted")

	// ErrNoItems is returned when the parser found no menu items.
	ErrNoItems = errors.New("veglens: no menu items found")

	// ErrReviewNotFound is returned when a correction submission
	// references an unknown or already-consumed request id.
	ErrReviewNotFound = errors.New("veglens: pending review not found")

	// ErrNoCorrections is returned when a review submission carries an
	// empty corrections list.
	ErrNoCorrections = errors.New("veglens: corrections must not be empty")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("veglens: invalid configuration")
)

package services

import "errors"

var (
	// ErrSearchTermTooShort rejects free-text searches below two characters.
	ErrSearchTermTooShort = errors.New("search term must be at least 2 characters")

	// ErrRetentionFloor rejects cleanup requests below the 30-day floor.
	ErrRetentionFloor = errors.New("retention period must be at least 30 days")

	// ErrInvalidDateRange rejects ranges whose start is after their end.
	ErrInvalidDateRange = errors.New("start date must not be after end date")

	// ErrActorNotFound distinguishes unknown actors from bad input.
	ErrActorNotFound = errors.New("actor not found")

	// ErrEntryNotFound distinguishes unknown entry ids from bad input.
	ErrEntryNotFound = errors.New("audit entry not found")

	// ErrUnsupportedFormat rejects export formats outside json/csv/excel/pdf.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

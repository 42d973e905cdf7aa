// Package errs defines the sentinel error values returned by the tsdb
// packages. Call sites wrap these with fmt.Errorf("...: %w", ErrX) to add
// positional context (file path, byte offset, channel id); callers use
// errors.Is against the sentinel to classify a failure.
package errs

import "errors"

// Format errors (spec §7 FormatError taxonomy). All are fatal for a
// finalized file; for an unfinalized file the decoder only surfaces these
// when they occur outside the tail tolerance window (see record package).
var (
	ErrBadMagic             = errors.New("tsdb: bad magic")
	ErrUnsupportedVersion   = errors.New("tsdb: unsupported version")
	ErrUnknownEntryType     = errors.New("tsdb: unknown entry type")
	ErrUnknownFormat        = errors.New("tsdb: unknown format id")
	ErrUnknownChannel       = errors.New("tsdb: unknown channel id")
	ErrDuplicateChannel     = errors.New("tsdb: duplicate channel definition")
	ErrDenseAllocation      = errors.New("tsdb: 8-bit channel id allocation is not dense")
	ErrMissingTimestamp     = errors.New("tsdb: value entry before any timestamp entry")
	ErrShortRead            = errors.New("tsdb: short read")
	ErrTruncated            = errors.New("tsdb: truncated entry in finalized file")
	ErrStringTooLong        = errors.New("tsdb: string length prefix exceeds remaining bytes")
	ErrInvalidChannelIDRange = errors.New("tsdb: channel id outside its declared width range")
	ErrValueOutOfRange      = errors.New("tsdb: value out of range for its format id's on-disk width")
)

// I/O errors.
var (
	ErrLockHeld     = errors.New("tsdb: day file is locked by another writer")
	ErrAlreadyFinal = errors.New("tsdb: cannot append to a finalized file")
	ErrClosed       = errors.New("tsdb: writer is closed")

	// ErrTimestampOutOfOrder is returned by Writer.Append when the caller
	// supplies a timestamp earlier than the day file's current timestamp.
	// The writer never emits a backward-moving absolute time entry (spec
	// design note resolving the "clock moves backward" open question);
	// callers that need to insert out-of-order samples must do so in a
	// separate pass or file.
	ErrTimestampOutOfOrder = errors.New("tsdb: timestamp precedes the file's current timestamp")
)

// Query errors.
var (
	ErrWindowInvalid = errors.New("tsdb: query window invalid (end before start)")
	ErrCancelled     = errors.New("tsdb: query cancelled")
)

// formatErrors lists every sentinel in the FormatError family (spec §7),
// used by IsFormatError to apply the finalized/unfinalized tail-tolerance
// policy uniformly across the whole taxonomy.
var formatErrors = []error{
	ErrBadMagic,
	ErrUnsupportedVersion,
	ErrUnknownEntryType,
	ErrUnknownFormat,
	ErrUnknownChannel,
	ErrDuplicateChannel,
	ErrDenseAllocation,
	ErrMissingTimestamp,
	ErrShortRead,
	ErrTruncated,
	ErrStringTooLong,
	ErrInvalidChannelIDRange,
	ErrValueOutOfRange,
}

// IsFormatError reports whether err wraps one of the FormatError sentinels.
func IsFormatError(err error) bool {
	for _, sentinel := range formatErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

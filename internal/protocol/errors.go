package protocol

const (
	// Request validation.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoTool        = "E_NO_TOOL"
	ErrBusy          = "E_BUSY"
	ErrInternal      = "E_INTERNAL"
)

// Run end reasons. A completed run has an empty reason.
const (
	ReasonToolUnavailable = "tool-unavailable"
	ReasonCanceled        = "canceled"
	ReasonInternal        = "internal"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrNotFound:      {},
	ErrInvalidTarget: {},
	ErrNoTool:        {},
	ErrBusy:          {},
	ErrInternal:      {},
}

var knownReasons = map[string]struct{}{
	ReasonToolUnavailable: {},
	ReasonCanceled:        {},
	ReasonInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

func IsKnownReason(reason string) bool {
	if reason == "" {
		return true
	}
	_, ok := knownReasons[reason]
	return ok
}

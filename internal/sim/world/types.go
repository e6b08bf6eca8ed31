package world

import "veinmine.ai/internal/sim/vein"

type Vec3i = vein.Vec3i

// RequestError is returned for rejected requests. Code is one of the
// protocol E_* codes.
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string { return e.Code + ": " + e.Message }

func reqErr(code, msg string) error { return &RequestError{Code: code, Message: msg} }

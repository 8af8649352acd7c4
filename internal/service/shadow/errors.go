package shadow

import "errors"

// ErrBadRequest marks a provider rejection of the request itself (malformed
// audio, unsupported format, oversized payload). The chain reacts to it by
// degrading to transcription instead of giving up: the answer may still be
// understandable as text even when the audio call is not accepted.
var ErrBadRequest = errors.New("provider rejected request")

// IsBadRequest reports whether err belongs to the bad-request class.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

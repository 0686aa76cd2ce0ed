package strategy

import (
	"errors"
)

// Resolution errors. Strategies wrap these with detail; the engine turns
// them into Fail outcomes.
var (
	ErrDecode              = errors.New("decode error")
	ErrMissingSubjectClaim = errors.New("missing subject claim")
	ErrMissingIssuerClaim  = errors.New("missing issuer claim")
	ErrRemoteFetch         = errors.New("remote fetch failure")
)

// FailureReason classifies a failed resolution.
type FailureReason string

const (
	ReasonDecodeError         FailureReason = "DecodeError"
	ReasonMissingSubjectClaim FailureReason = "MissingSubjectClaim"
	ReasonMissingIssuerClaim  FailureReason = "MissingIssuerClaim"
	ReasonRemoteFetchFailure  FailureReason = "RemoteFetchFailure"
	ReasonUnknown             FailureReason = "Unknown"
)

// ReasonOf maps an error chain to its FailureReason.
func ReasonOf(err error) FailureReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return ReasonDecodeError
	case errors.Is(err, ErrMissingSubjectClaim):
		return ReasonMissingSubjectClaim
	case errors.Is(err, ErrMissingIssuerClaim):
		return ReasonMissingIssuerClaim
	case errors.Is(err, ErrRemoteFetch):
		return ReasonRemoteFetchFailure
	default:
		return ReasonUnknown
	}
}

package holyiot

import "errors"

// Rejection reasons. They never cross Matches/Decode; they only feed the
// diagnostic log and Explain.
var (
	ErrVendorMismatch   = errors.New("vendor service data not present")
	ErrTruncatedPayload = errors.New("payload length out of range")
	ErrIdentityMismatch = errors.New("embedded mac does not match address")
	ErrMalformedAddress = errors.New("address is not a 6-byte hex mac")
)

package retry

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/aws/smithy-go"
)

// Class tells whether a failed remote call is worth retrying.
type Class int

const (
	Permanent Class = iota
	Transient
)

func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

// Classifier maps an error to exactly one Class.
type Classifier func(err error) Class

var throttlingCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"Throttling":                             {},
	"RequestThrottled":                       {},
	"SlowDown":                               {},
}

var serverFaultCodes = map[string]struct{}{
	"ServiceUnavailable":      {},
	"InternalServerError":     {},
	"InternalServerException": {},
	"InternalFailure":         {},
}

// Classify reports Transient for throttling, timeouts and server-side faults, and Permanent
// for everything else, including cancellation of the caller's own context.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := throttlingCodes[code]; ok {
			return Transient
		}
		if _, ok := serverFaultCodes[code]; ok {
			return Transient
		}
	}

	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status == 429 || (status >= 500 && status < 600) {
			return Transient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Transient
	}

	return Permanent
}

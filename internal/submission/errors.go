package submission

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/tonimelisma/classroom-go/internal/auth"
)

// ErrAlreadyTurnedIn is returned by Submit when the user's submission is
// already in the TURNED_IN state. Nothing is attached or turned in.
var ErrAlreadyTurnedIn = errors.New("assignment already turned in")

// ErrBadRequest marks caller mistakes such as a missing course or assignment id.
var ErrBadRequest = errors.New("bad request")

// UpstreamError wraps a failure from the Classroom or Drive API. The message
// is the upstream one, unchanged.
type UpstreamError struct {
	Op         string // workflow step, for logs
	StatusCode int    // HTTP status from Google, zero for transport errors
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstream wraps err as an UpstreamError unless it already is one.
func upstream(op string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	out := &UpstreamError{Op: op, Err: err}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		out.StatusCode = apiErr.Code
	}

	return out
}

// Kind classifies an error for the request boundary.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindLocalState
	KindAuth
	KindBusiness
	KindBadRequest
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindLocalState:
		return "local_state"
	case KindAuth:
		return "auth"
	case KindBusiness:
		return "business"
	case KindBadRequest:
		return "bad_request"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// HTTPStatus is the response status for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindBusiness:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf classifies err. Order matters: a consent failure caused by an
// upstream token endpoint error is still an auth error.
func KindOf(err error) Kind {
	var (
		ue     *UpstreamError
		apiErr *googleapi.Error
	)

	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAlreadyTurnedIn):
		return KindBusiness
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, auth.ErrConsentFailed), errors.Is(err, auth.ErrRefreshFailed):
		return KindAuth
	case errors.Is(err, auth.ErrClientSecretsMissing), errors.Is(err, auth.ErrClientSecretsInvalid):
		return KindLocalState
	case errors.As(err, &ue), errors.As(err, &apiErr):
		return KindUpstream
	default:
		return KindLocalState
	}
}

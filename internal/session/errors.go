package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity marks failures where the transport could not complete:
	// unreachable backend, timeout, non-success status without a structured
	// error body, or a malformed response.
	ErrConnectivity = errors.New("backend unreachable")

	// ErrService marks responses that carried an explicit error payload.
	ErrService = errors.New("backend reported an error")

	// ErrEmptySubmission is returned by Submit for blank text.
	ErrEmptySubmission = errors.New("empty submission")

	// ErrSubmissionInFlight is returned by Submit while another submission
	// is outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")

	// ErrHistoryLoading is returned by Submit while the history of the
	// selected conversation is still being fetched.
	ErrHistoryLoading = errors.New("history still loading")
)

const bannerText = "Connection error: make sure the backend is running and its API keys are set."

// Banner maps a failure to the single message shown to the user. Connectivity
// and service failures are deliberately indistinguishable here.
func Banner(err error) string {
	if err == nil {
		return ""
	}
	return bannerText
}

// IsRejection reports whether err is a local, silent rejection of Submit.
func IsRejection(err error) bool {
	return errors.Is(err, ErrEmptySubmission) ||
		errors.Is(err, ErrSubmissionInFlight) ||
		errors.Is(err, ErrHistoryLoading)
}

// classify guarantees that a backend failure carries one of the two kinds.
// Errors of unknown origin count as connectivity failures.
func classify(err error) error {
	if errors.Is(err, ErrConnectivity) || errors.Is(err, ErrService) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectivity, err)
}

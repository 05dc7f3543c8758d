package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNoSourceImage    = errors.New("no image available")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrPublishRejected  = errors.New("publish rejected")
)

// Stage names the pipeline step an error originated from.
type Stage string

const (
	StageBackgroundRemoval Stage = "background_removal"
	StageStylize           Stage = "stylize"
	StageVideoConcept      Stage = "video_concept"
	StageVideo             Stage = "video"
	StageCaption           Stage = "caption"
	StageDownload          Stage = "download"
	StagePublish           Stage = "publish"
	StageImageSearch       Stage = "image_search"
)

// TransientNetworkError is a retriable failure: timeouts, 5xx, 429.
type TransientNetworkError struct {
	Stage      Stage
	Attempts   int
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure after %d attempt(s): status %d: %v", e.Stage, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// PermanentRequestError is a non-retriable rejection (4xx other than 429,
// malformed payloads).
type PermanentRequestError struct {
	Stage      Stage
	StatusCode int
	Detail     string
}

func (e *PermanentRequestError) Error() string {
	return fmt.Sprintf("%s: request rejected with status %d: %s", e.Stage, e.StatusCode, e.Detail)
}

// JobFailedError means the provider reported the job as failed.
type JobFailedError struct {
	Stage  Stage
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s: job %s failed: %s", e.Stage, e.JobID, e.Reason)
}

// JobTimeoutError means polling ran out of attempts before a terminal state.
type JobTimeoutError struct {
	Stage    Stage
	JobID    string
	Attempts int
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("%s: job %s still running after %d poll(s)", e.Stage, e.JobID, e.Attempts)
}

// ConfigurationError reports a missing credential or setting. It is raised
// before any network call.
type ConfigurationError struct {
	Stage   Stage
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Stage, e.Setting)
}

// DownloadError is returned once every fetch attempt for an artifact failed.
type DownloadError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var transient *TransientNetworkError
	return errors.As(err, &transient)
}

// IsNotConfigured reports whether err stems from a missing credential.
func IsNotConfigured(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// HTTPStatus maps an error onto the status code returned by the API.
func HTTPStatus(err error) int {
	var (
		permanent *PermanentRequestError
		failed    *JobFailedError
		timeout   *JobTimeoutError
		transient *TransientNetworkError
		download  *DownloadError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNoSourceImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrArtifactNotFound):
		return http.StatusNotFound
	case IsNotConfigured(err):
		return http.StatusInternalServerError
	case errors.As(err, &failed), errors.As(err, &timeout), errors.As(err, &permanent),
		errors.As(err, &transient), errors.As(err, &download), errors.Is(err, ErrPublishRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

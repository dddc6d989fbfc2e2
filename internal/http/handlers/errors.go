package handlers

import "errors"

var (
	errNotAuthenticated = errors.New("not authenticated")
	errNotShared        = errors.New("speech has not been shared yet")
	errMissingFile      = errors.New("file field required")
)

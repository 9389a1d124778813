package api

import "errors"

var (
	// ErrUploadTargetDenied: the backend refused to mint a presigned PUT URL
	// (unsupported extension, unauthenticated, ...).
	ErrUploadTargetDenied = errors.New("upload target denied")

	// ErrDownloadTargetDenied: the backend refused to mint a presigned GET URL.
	ErrDownloadTargetDenied = errors.New("download target denied")

	// ErrBackend covers remaining non-2xx answers from the backend.
	ErrBackend = errors.New("backend error")
)

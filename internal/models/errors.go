package models

import "errors"

// Sentinel errors returned by repositories and pipeline components.
// Components return these wrapped with context; the HTTP layer and the
// scheduler translate them into status codes and terminal queue states.
var (
	// ErrVideoNotFound indicates the requested video id is unknown.
	ErrVideoNotFound = errors.New("video not found")

	// ErrClipNotFound indicates the requested clip id is unknown.
	ErrClipNotFound = errors.New("clip not found")

	// ErrFileMissing indicates a video row exists but its media file does not.
	ErrFileMissing = errors.New("media file missing")

	// ErrAlreadyTranscribed indicates segments already exist for the video;
	// callers must delete them first (the force path) to keep retries
	// idempotent.
	ErrAlreadyTranscribed = errors.New("segments already exist")

	// ErrNoSegments indicates indexing was requested for a video without
	// raw segments.
	ErrNoSegments = errors.New("no segments for video")

	// ErrModelLoad indicates an inference model or sidecar could not be
	// reached or loaded.
	ErrModelLoad = errors.New("model load failed")

	// ErrDecodingFailed indicates the ASR decode or an embedding request
	// failed mid-run.
	ErrDecodingFailed = errors.New("decoding failed")
)

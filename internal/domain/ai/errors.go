package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyText is returned before any network call when there is nothing to send.
var ErrEmptyText = errors.New("ai: empty input text")

// ErrEmptyResponse means the provider answered without any choice content.
var ErrEmptyResponse = errors.New("ai: empty response")

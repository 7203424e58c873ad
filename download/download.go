// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package download is the fetch-to-path service (spec §4.2): resumable
// downloads with streaming SHA-256, progress/retry notifications, and the
// paired download_and_verify + update-hash fast path. Grounded on
// _examples/original_source/src/rustup-dist/src/download.rs
// (download_and_check's hash-then-payload sequencing and the
// UPDATE_HASH_LEN fast path) with the HTTP transport abstracted behind the
// pluggable Backend capability SPEC_FULL.md §4.12 completes.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cenkalti/backoff/v4"

	"toolup.sh/notify"
)

// UpdateHashLen is the number of hex characters of a manifest's content
// hash persisted as the update-hash fast-path fingerprint, matching the
// original implementation's constant of the same name.
const UpdateHashLen = 20

// chunkSize is the fixed buffer size Get reads the backend's stream with,
// so each DownloadDataReceived notification covers at most this many bytes.
const chunkSize = 32 * 1024

// Backend is the capability set a download transport must satisfy (spec
// §9 "Backend pluggability"): given a URL and a resume offset, return a
// stream of the response body, its content length if known (-1
// otherwise), and whether the range was honored (false means the body is
// the full object from offset 0).
type Backend interface {
	Get(ctx context.Context, url string, rangeStart int64) (body io.ReadCloser, contentLength int64, rangeHonored bool, err error)
}

// Sentinel errors from spec §7's Network/Integrity taxonomy.
var (
	ErrFileNotFound   = errors.New("file not found")
	ErrChecksumFailed = errors.New("checksum verification failed")
)

// HTTPStatusError wraps a non-2xx response status. Backends return it for a
// 404 as well; Service translates that case into ErrFileNotFound.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d for %s", e.Code, e.URL)
}

// ChecksumError carries the expected and calculated hashes of a payload
// that failed verification (spec §7 ChecksumFailed{url,expected,calculated}).
type ChecksumError struct {
	URL        string
	Expected   string
	Calculated string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum failed for %s: expected %s, got %s", e.URL, e.Expected, e.Calculated)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumFailed }

// Service is the download service, constructed with a chosen Backend (spec
// §9: "the distribution engine is polymorphic over it").
type Service struct {
	backend    Backend
	sink       notify.Sink
	maxRetries uint64
}

// Option configures a Service, following the teacher's functional-options
// convention (e.g. pack/options.go's PullOption).
type Option func(*Service)

// WithSink sets the notification sink events are emitted through.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithMaxRetries overrides the retry bound for transient network errors
// (spec §4.2 "retried with exponential backoff up to a fixed bound").
func WithMaxRetries(n uint64) Option {
	return func(s *Service) { s.maxRetries = n }
}

// NewService constructs a Service over backend.
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{backend: backend, maxRetries: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of Get: the streamed SHA-256 hash of the
// downloaded (or resumed+downloaded) payload.
type Result struct {
	Hash string
}

// Get fetches url to dst. If dst exists and resumeFromPartial is true, its
// length L is read and a range request for bytes L–∞ is issued; if the
// backend reports the range wasn't honored, dst is truncated and the
// download restarts from scratch (spec §4.2).
func (s *Service) Get(ctx context.Context, url, dst string, resumeFromPartial bool) (*Result, error) {
	var offset int64

	flags := os.O_WRONLY | os.O_CREATE
	if resumeFromPartial {
		if fi, err := os.Stat(dst); err == nil {
			offset = fi.Size()
			flags |= os.O_APPEND
			s.sink.Emit(notify.ResumingPartialDownload{})
		} else {
			flags |= os.O_TRUNC
		}
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dst, err)
	}
	defer f.Close()

	hasher := sha256.New()

	attempt := 0
	retry := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries)

	err = backoff.Retry(func() error {
		// Re-establish a known-good file position before every attempt
		// (including retries after a failed read mid-stream) so a partial
		// write from an earlier attempt never leaves duplicated bytes.
		if err := f.Truncate(offset); err != nil {
			return backoff.Permanent(err)
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		hasher.Reset()
		if offset > 0 {
			existing, err := os.Open(dst)
			if err != nil {
				return backoff.Permanent(err)
			}
			_, err = io.CopyN(hasher, existing, offset)
			existing.Close()
			if err != nil {
				return backoff.Permanent(err)
			}
		}

		body, contentLength, rangeHonored, err := s.backend.Get(ctx, url, offset)
		if err != nil {
			var status *HTTPStatusError
			if errors.As(err, &status) && status.Code == 404 {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrFileNotFound, url))
			}
			attempt++
			s.sink.Emit(notify.RetryingDownload{URL: url, Attempt: attempt})
			return err
		}
		defer body.Close()

		if offset > 0 && !rangeHonored {
			if err := f.Truncate(0); err != nil {
				return backoff.Permanent(err)
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
			hasher.Reset()
			offset = 0
		}

		if contentLength >= 0 {
			s.sink.Emit(notify.DownloadContentLengthReceived{URL: url, Length: contentLength})
		}

		buf := make([]byte, chunkSize)
		mw := io.MultiWriter(f, hasher)
		for {
			n, readErr := body.Read(buf)
			if n > 0 {
				if _, writeErr := mw.Write(buf[:n]); writeErr != nil {
					return backoff.Permanent(writeErr)
				}
				s.sink.Emit(notify.DownloadDataReceived{URL: url, Bytes: n})
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				attempt++
				s.sink.Emit(notify.RetryingDownload{URL: url, Attempt: attempt})
				return readErr
			}
		}

		return nil
	}, retry)
	if err != nil {
		return nil, err
	}

	s.sink.Emit(notify.DownloadFinished{URL: url})

	return &Result{Hash: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// GetAndVerify downloads a companion hash object from url+".sha256", then
// downloads url itself, and fails with ChecksumError if the streamed hash
// doesn't match (spec §4.2 download_and_verify).
func (s *Service) GetAndVerify(ctx context.Context, url, dst string, resumeFromPartial bool) (*Result, error) {
	expected, err := s.fetchHash(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching hash for %s: %w", url, err)
	}

	result, err := s.Get(ctx, url, dst, resumeFromPartial)
	if err != nil {
		return nil, err
	}

	if result.Hash != expected {
		return nil, &ChecksumError{URL: url, Expected: expected, Calculated: result.Hash}
	}

	return result, nil
}

func (s *Service) fetchHash(ctx context.Context, url string) (string, error) {
	body, _, _, err := s.backend.Get(ctx, url+".sha256", 0)
	if err != nil {
		var status *HTTPStatusError
		if errors.As(err, &status) && status.Code == 404 {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, url+".sha256")
		}
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	hash := string(data)
	if len(hash) < 64 {
		return "", fmt.Errorf("malformed hash file for %s", url)
	}
	return hash[:64], nil
}

// CheckUpdateHash fetches url's companion hash and compares its
// UpdateHashLen-character prefix against the one stored at updateHashPath.
// On a match it returns (prefix, false, nil): the sentinel "unchanged" result
// the caller (spec §4.5 step 3) should treat as "skip the download
// entirely." On a miss it writes the new prefix and returns it.
func (s *Service) CheckUpdateHash(ctx context.Context, url, updateHashPath string) (prefix string, changed bool, err error) {
	hash, err := s.fetchHash(ctx, url)
	if err != nil {
		return "", false, err
	}

	newPrefix := hash[:UpdateHashLen]

	if data, readErr := os.ReadFile(updateHashPath); readErr == nil {
		if string(data) == newPrefix {
			return newPrefix, false, nil
		}
	}

	if err := os.WriteFile(updateHashPath, []byte(newPrefix), 0o644); err != nil {
		return "", false, fmt.Errorf("writing update hash to %s: %w", updateHashPath, err)
	}

	return newPrefix, true, nil
}

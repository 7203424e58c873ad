// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cli/safeexec"

	"toolup.sh/internal/runexec"
	"toolup.sh/internal/version"
)

// curlBackend shells out to the system curl binary, the second of the two
// Backend implementations SPEC_FULL.md §4.12 calls for: some environments
// (proxies enforcing client certificates, NTLM-authenticating corporate
// networks) only have working TLS/proxy support through the platform curl,
// not through Go's net/http. Grounded on the teacher's internal/cmdutil
// convention of resolving external binaries via github.com/cli/safeexec
// before running them through the exec package.
type curlBackend struct {
	bin string
}

// NewCurlBackend resolves the curl binary on PATH and returns a Backend
// backed by it. It fails fast if curl isn't installed, rather than
// deferring that discovery to the first Get call.
func NewCurlBackend() (Backend, error) {
	bin, err := safeexec.LookPath("curl")
	if err != nil {
		return nil, fmt.Errorf("locating curl: %w", err)
	}
	return &curlBackend{bin: bin}, nil
}

func (b *curlBackend) Get(ctx context.Context, url string, rangeStart int64) (body io.ReadCloser, contentLength int64, rangeHonored bool, err error) {
	args := []string{
		"--silent", "--show-error", "--location", "--fail",
		"--user-agent", version.UserAgent(),
		"--dump-header", "-",
	}
	if rangeStart > 0 {
		args = append(args, "--range", fmt.Sprintf("%d-", rangeStart))
	}
	args = append(args, url)

	var stdout bytes.Buffer
	proc, err := runexec.New(b.bin, args,
		runexec.WithContext(ctx),
		runexec.WithStdout(&stdout),
	)
	if err != nil {
		return nil, 0, false, err
	}

	if err := proc.Run(); err != nil {
		if proc.ExitCode() == curlExitFileNotFound {
			return nil, 0, false, &HTTPStatusError{URL: url, Code: 404}
		}
		return nil, 0, false, fmt.Errorf("running curl: %w", err)
	}

	status, length, honored, payload, err := splitCurlHeaders(stdout.Bytes())
	if err != nil {
		return nil, 0, false, err
	}
	if status == 404 {
		return nil, 0, false, &HTTPStatusError{URL: url, Code: status}
	}
	if status < 200 || status >= 300 {
		return nil, 0, false, &HTTPStatusError{URL: url, Code: status}
	}

	return io.NopCloser(bytes.NewReader(payload)), length, honored, nil
}

// curlExitFileNotFound is curl's --fail exit status for an HTTP response
// code >= 400.
const curlExitFileNotFound = 22

// splitCurlHeaders parses curl's --dump-header=- output, where the header
// block (of the final response in a redirect chain) is immediately
// followed by the response body, and returns the status code, content
// length (-1 if absent), whether a 206 Partial Content was returned, and
// the body bytes.
func splitCurlHeaders(raw []byte) (status int, length int64, rangeHonored bool, body []byte, err error) {
	sep := []byte("\r\n\r\n")
	idx := bytes.LastIndex(raw, sep)
	if idx == -1 {
		sep = []byte("\n\n")
		idx = bytes.LastIndex(raw, sep)
	}
	if idx == -1 {
		return 0, -1, false, nil, fmt.Errorf("malformed curl header block")
	}

	header := string(raw[:idx])
	body = raw[idx+len(sep):]
	length = -1

	lines := strings.Split(strings.ReplaceAll(header, "\r\n", "\n"), "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 {
			parts := strings.Fields(line)
			if len(parts) < 2 {
				return 0, -1, false, nil, fmt.Errorf("malformed curl status line: %q", line)
			}
			status, err = strconv.Atoi(parts[1])
			if err != nil {
				return 0, -1, false, nil, fmt.Errorf("parsing curl status line: %w", err)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-length":
			if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
				length = n
			}
		}
	}

	rangeHonored = status == 206

	return status, length, rangeHonored, body, nil
}

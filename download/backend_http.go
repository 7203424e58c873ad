// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"toolup.sh/internal/version"
)

// httpBackend is the pure-Go Backend built on net/http, adapted from the
// teacher's internal/httpclient ClientOption/funcTripper chain: a
// RoundTripper decoration pipeline that injects the User-Agent header and
// otherwise defers to http.ProxyFromEnvironment for the proxy-environment
// variables spec §6 lists (http_proxy/https_proxy/all_proxy/no_proxy).
type httpBackend struct {
	client *http.Client
}

// funcTripper adapts a plain function to http.RoundTripper, the same
// pattern the teacher's httpclient package used for its option chain.
type funcTripper struct {
	roundTrip func(*http.Request) (*http.Response, error)
}

func (t funcTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.roundTrip(req)
}

// NewHTTPBackend constructs the default download.Backend.
func NewHTTPBackend() Backend {
	base := &http.Transport{Proxy: http.ProxyFromEnvironment}

	ua := version.UserAgent()
	tripper := funcTripper{roundTrip: func(req *http.Request) (*http.Response, error) {
		req.Header.Set("User-Agent", ua)
		return base.RoundTrip(req)
	}}

	return &httpBackend{client: &http.Client{Transport: tripper}}
}

func (b *httpBackend) Get(ctx context.Context, url string, rangeStart int64) (body io.ReadCloser, contentLength int64, rangeHonored bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, false, err
	}

	if rangeStart > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rangeStart))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, false, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, false, &HTTPStatusError{URL: url, Code: resp.StatusCode}
	case resp.StatusCode == http.StatusPartialContent:
		return resp.Body, resp.ContentLength, true, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, resp.ContentLength, rangeStart == 0, nil
	default:
		resp.Body.Close()
		return nil, 0, false, &HTTPStatusError{URL: url, Code: resp.StatusCode}
	}
}

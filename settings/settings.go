// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package settings is the per-user settings store (spec §4.10):
// default_toolchain, directory overrides, read-if-absent-write-default,
// atomic write-temp-then-rename, sequential within-process with_mut.
// Grounded on _examples/original_source/src/rustup/settings.rs's
// SettingsFile/Settings split (DEFAULT_METADATA_VERSION, path_to_key,
// find_override's ancestor walk), re-encoded as TOML via
// github.com/BurntSushi/toml per SPEC_FULL.md §3, with the home directory
// resolved via github.com/mitchellh/go-homedir matching config/defaults.go.
package settings

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"

	fsutil "toolup.sh/internal/fs"
	"toolup.sh/notify"
)

// SupportedVersions are the settings metadata versions this build accepts.
var SupportedVersions = map[string]bool{"2": true, "12": true}

// CurrentVersion is the version newly-written settings documents carry.
const CurrentVersion = "12"

// Document is the parsed settings document (spec §6).
type Document struct {
	Version          string            `toml:"version"`
	DefaultToolchain string            `toml:"default_toolchain,omitempty"`
	Overrides        map[string]string `toml:"overrides"`
}

func defaultDocument() Document {
	return Document{Version: CurrentVersion, Overrides: map[string]string{}}
}

// Store owns the settings document at a fixed path under the per-user home.
type Store struct {
	path string
	sink notify.Sink
}

// DefaultPath returns <user-home>/.toolup/settings.toml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".toolup", "settings.toml"), nil
}

// Open returns a Store backed by path. It does not touch disk yet; the
// document is read lazily (and written with defaults if absent) on first
// access, matching the source base's SettingsFile.
func Open(path string, sink notify.Sink) *Store {
	return &Store{path: path, sink: sink}
}

func (s *Store) read() (Document, error) {
	if !fsutil.Exists(s.path) {
		doc := defaultDocument()
		if err := s.write(doc); err != nil {
			return Document{}, err
		}
		return doc, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("reading settings: %w", err)
	}

	var doc Document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Document{}, fmt.Errorf("parsing settings: %w", err)
	}

	if !SupportedVersions[doc.Version] {
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownMetadataVersion, doc.Version)
	}

	if doc.Overrides == nil {
		doc.Overrides = map[string]string{}
	}

	return doc, nil
}

// write persists doc atomically: encode to a sibling temp file, fsync,
// then rename over path. A crash mid-write leaves the prior settings
// document intact (spec §7 "the last successful settings document is
// preserved").
func (s *Store) write(doc Document) error {
	if err := fsutil.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(s.path), fmt.Sprintf(".settings-%s.tmp", uuid.NewString()[:8]))
	if err := fsutil.WriteFile(tmpPath, buf.Bytes()); err != nil {
		return err
	}

	return fsutil.Rename(context.Background(), tmpPath, s.path, s.sink)
}

// With reads the current document and passes it to f without persisting
// any mutation.
func (s *Store) With(f func(doc Document) error) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	return f(doc)
}

// WithMut reads the document, applies f, and writes the result back.
// Concurrent writers from separate processes are not synchronized: the
// last writer wins (spec §4.10).
func (s *Store) WithMut(f func(doc *Document) error) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := f(&doc); err != nil {
		return err
	}
	return s.write(doc)
}

// FindOverride resolves the active toolchain override for dir by walking
// canonicalize(dir) upward through its ancestors; the first one present as
// an overrides key wins.
func (doc *Document) FindOverride(dir string, sink notify.Sink) (toolchain, matchedDir string, ok bool) {
	resolved := fsutil.Canonicalize(dir, sink)

	for path := resolved; ; {
		if name, present := doc.Overrides[path]; present {
			return name, path, true
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", "", false
		}
		path = parent
	}
}

// AddOverride registers toolchain for dir (canonicalized).
func (doc *Document) AddOverride(dir, toolchain string, sink notify.Sink) {
	key := fsutil.Canonicalize(dir, sink)
	if doc.Overrides == nil {
		doc.Overrides = map[string]string{}
	}
	doc.Overrides[key] = toolchain
}

// RemoveOverride removes any override registered for dir (canonicalized),
// reporting whether one was present.
func (doc *Document) RemoveOverride(dir string, sink notify.Sink) bool {
	key := fsutil.Canonicalize(dir, sink)
	if _, ok := doc.Overrides[key]; !ok {
		return false
	}
	delete(doc.Overrides, key)
	return true
}

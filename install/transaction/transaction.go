// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package transaction is the in-memory, crash-unaware transaction engine
// (spec §4.7): every staged change is recorded with enough information to
// undo it, and Rollback replays that log in reverse. Grounded on the
// teacher's buffered-copy conventions in internal/fs, with the Rust
// Drop-based "rollback on scope exit" idiom adapted to the explicit
// Commit/Rollback pair idiomatic Go favors over finalizers — callers are
// expected to `defer txn.Rollback()` immediately after New and call Commit
// on the success path, mirroring how the teacher's own resource-scoped
// helpers (e.g. internal/tmp.Scope) pair construction with a deferred
// cleanup call.
package transaction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	fsutil "toolup.sh/internal/fs"
	"toolup.sh/internal/tmp"
	"toolup.sh/notify"
)

type changeKind int

const (
	fileAdded changeKind = iota
	dirAdded
	fileRemoved
	dirRemoved
	fileModified
	componentAdded
	componentRemoved
)

type change struct {
	kind      changeKind
	relPath   string
	staged    string
	component string
}

// Transaction stages filesystem and index changes under prefix, backed by
// a temp scope for the staged copies rollback needs.
type Transaction struct {
	ctx       context.Context
	prefix    string
	temp      *tmp.Scope
	sink      notify.Sink
	changes   []change
	touched   map[string]bool
	committed bool
}

// New opens a transaction rooted at prefix, staging rollback copies under
// temp.
func New(ctx context.Context, prefix string, temp *tmp.Scope, sink notify.Sink) *Transaction {
	return &Transaction{
		ctx:     ctx,
		prefix:  prefix,
		temp:    temp,
		sink:    sink,
		touched: make(map[string]bool),
	}
}

func (t *Transaction) path(rel string) string {
	return filepath.Join(t.prefix, rel)
}

func (t *Transaction) record(kind changeKind, relPath, staged, component string) {
	t.changes = append(t.changes, change{kind: kind, relPath: relPath, staged: staged, component: component})
}

func (t *Transaction) checkFresh(relPath string) error {
	if t.touched[relPath] {
		return nil
	}
	if fsutil.Exists(t.path(relPath)) {
		return &ComponentConflict{Path: relPath}
	}
	return nil
}

// CopyFile stages src into prefix/relPath. relPath must not already exist
// in prefix, unless it was itself created earlier in this transaction.
func (t *Transaction) CopyFile(relPath, src string) error {
	if err := t.checkFresh(relPath); err != nil {
		return err
	}

	dst := t.path(relPath)
	if err := fsutil.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := fsutil.CopyFile(src, dst); err != nil {
		return err
	}

	t.touched[relPath] = true
	t.record(fileAdded, relPath, "", "")
	return nil
}

// CopyDir recursively stages src into prefix/relPath. The directory must
// not exist beforehand.
func (t *Transaction) CopyDir(relPath, src string) error {
	if err := t.checkFresh(relPath); err != nil {
		return err
	}

	dst := t.path(relPath)
	if err := fsutil.CopyDir(src, dst); err != nil {
		return err
	}

	t.touched[relPath] = true
	t.record(dirAdded, relPath, "", "")
	return nil
}

// MoveFile is CopyFile by rename, used when src already lives in the
// transaction's temp scope and doesn't need to be preserved there.
func (t *Transaction) MoveFile(relPath, src string) error {
	if err := t.checkFresh(relPath); err != nil {
		return err
	}

	dst := t.path(relPath)
	if err := fsutil.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := fsutil.Rename(t.ctx, src, dst, t.sink); err != nil {
		return err
	}

	t.touched[relPath] = true
	t.record(fileAdded, relPath, "", "")
	return nil
}

// MoveDir is CopyDir by rename.
func (t *Transaction) MoveDir(relPath, src string) error {
	if err := t.checkFresh(relPath); err != nil {
		return err
	}

	dst := t.path(relPath)
	if err := fsutil.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := fsutil.Rename(t.ctx, src, dst, t.sink); err != nil {
		return err
	}

	t.touched[relPath] = true
	t.record(dirAdded, relPath, "", "")
	return nil
}

// RemoveFile stages the current contents of prefix/relPath into the temp
// scope, then deletes the live file.
func (t *Transaction) RemoveFile(relPath string) error {
	live := t.path(relPath)

	staged, err := t.temp.NewFile("removed", filepath.Ext(relPath))
	if err != nil {
		return err
	}
	if err := fsutil.CopyFile(live, staged); err != nil {
		return err
	}
	if err := os.Remove(live); err != nil {
		return fmt.Errorf("removing %s: %w", live, err)
	}

	t.record(fileRemoved, relPath, staged, "")
	return nil
}

// RemoveDir stages the current directory into the temp scope, then
// deletes the live directory.
func (t *Transaction) RemoveDir(relPath string) error {
	live := t.path(relPath)

	staged, err := t.temp.NewDir()
	if err != nil {
		return err
	}
	if err := fsutil.CopyDir(live, staged); err != nil {
		return err
	}
	if err := os.RemoveAll(live); err != nil {
		return fmt.Errorf("removing %s: %w", live, err)
	}

	t.record(dirRemoved, relPath, staged, "")
	return nil
}

// WriteFile is a convenience over CopyFile: content is written to a temp
// file, which is then staged at relPath.
func (t *Transaction) WriteFile(relPath string, content []byte) error {
	tmpFile, err := t.temp.NewFile("write", filepath.Ext(relPath))
	if err != nil {
		return err
	}
	if err := fsutil.WriteFile(tmpFile, content); err != nil {
		return err
	}
	return t.CopyFile(relPath, tmpFile)
}

// ModifyHandle is a writable handle to a live path whose prior contents
// have already been staged for rollback. Close must be called to record
// the change.
type ModifyHandle struct {
	*os.File
	t       *Transaction
	relPath string
	staged  string
}

// Close closes the underlying file and records the FileModified change.
func (h *ModifyHandle) Close() error {
	err := h.File.Close()
	h.t.record(fileModified, h.relPath, h.staged, "")
	return err
}

// ModifyFile stages the current contents of prefix/relPath, then returns a
// writable handle to the live path.
func (t *Transaction) ModifyFile(relPath string) (*ModifyHandle, error) {
	live := t.path(relPath)

	staged, err := t.temp.NewFile("modify", filepath.Ext(relPath))
	if err != nil {
		return nil, err
	}
	if err := fsutil.CopyFile(live, staged); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(live, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s for modification: %w", live, err)
	}

	return &ModifyHandle{File: f, t: t, relPath: relPath, staged: staged}, nil
}

// componentsIndexPath is the fixed path (relative to prefix) of the
// installed-components index (spec §6 "on-disk toolchain layout").
const componentsIndexPath = "lib/rustlib/components"

// AddComponent appends name to the installed-components index.
func (t *Transaction) AddComponent(name string) error {
	index := t.path(componentsIndexPath)
	if err := fsutil.EnsureDir(filepath.Dir(index)); err != nil {
		return err
	}
	if err := fsutil.AppendLine(index, name); err != nil {
		return err
	}

	t.record(componentAdded, "", "", name)
	return nil
}

// RemoveComponent removes name's line from the installed-components index
// by filtered rewrite, staging the pre-removal index for rollback.
func (t *Transaction) RemoveComponent(name string) error {
	index := t.path(componentsIndexPath)

	staged, err := t.temp.NewFile("components", ".bak")
	if err != nil {
		return err
	}
	if err := fsutil.CopyFile(index, staged); err != nil {
		return err
	}
	if err := t.filterOutLine(index, name); err != nil {
		return err
	}

	t.record(componentRemoved, "", staged, name)
	return nil
}

func (t *Transaction) filterOutLine(index, name string) error {
	filtered, err := t.temp.NewFile("components", ".new")
	if err != nil {
		return err
	}
	if err := fsutil.FilterFileLines(index, filtered, func(line string) bool { return line != name }); err != nil {
		return err
	}
	return fsutil.Rename(t.ctx, filtered, index, t.sink)
}

// Commit consumes the transaction: every change is already applied to
// disk, so there is nothing left to do except prevent a later Rollback
// from undoing it.
func (t *Transaction) Commit() error {
	t.committed = true
	t.changes = nil
	return nil
}

// Rollback undoes every recorded change in reverse order. It is a no-op if
// the transaction was already committed, so the idiomatic
// `defer txn.Rollback()` after a successful Commit does nothing.
func (t *Transaction) Rollback() error {
	if t.committed {
		return nil
	}

	for i := len(t.changes) - 1; i >= 0; i-- {
		c := t.changes[i]
		if err := t.undo(c); err != nil {
			t.sink.Emit(notify.NonFatalError{Err: fmt.Errorf("rolling back %v: %w", c.kind, err)})
		}
	}

	t.changes = nil
	return nil
}

func (t *Transaction) undo(c change) error {
	switch c.kind {
	case fileAdded, dirAdded:
		return os.RemoveAll(t.path(c.relPath))

	case fileRemoved:
		live := t.path(c.relPath)
		if err := fsutil.EnsureDir(filepath.Dir(live)); err != nil {
			return err
		}
		return fsutil.CopyFile(c.staged, live)

	case dirRemoved:
		live := t.path(c.relPath)
		if err := fsutil.EnsureDir(filepath.Dir(live)); err != nil {
			return err
		}
		return fsutil.CopyDir(c.staged, live)

	case fileModified:
		return fsutil.CopyFile(c.staged, t.path(c.relPath))

	case componentAdded:
		return t.filterOutLine(t.path(componentsIndexPath), c.component)

	case componentRemoved:
		return fsutil.CopyFile(c.staged, t.path(componentsIndexPath))
	}

	return nil
}

func (k changeKind) String() string {
	switch k {
	case fileAdded:
		return "FileAdded"
	case dirAdded:
		return "DirAdded"
	case fileRemoved:
		return "FileRemoved"
	case dirRemoved:
		return "DirRemoved"
	case fileModified:
		return "FileModified"
	case componentAdded:
		return "ComponentAdded"
	case componentRemoved:
		return "ComponentRemoved"
	default:
		return "Unknown"
	}
}

// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package pkgreader

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"toolup.sh/internal/tmp"
)

// OpenArchive decompresses the archive at src (picking the decoder from its
// extension, .tar.gz or .tar.xz, per SPEC_FULL.md §4.13) into a fresh
// directory under scope, then opens it as a DirectoryPackage. Adapted from
// the teacher's archive.UntarGz extraction loop, generalized over the
// decompression step so the tar-walking logic is shared between both
// extensions.
func OpenArchive(src string, scope *tmp.Scope) (*DirectoryPackage, error) {
	dst, err := scope.NewDir()
	if err != nil {
		return nil, fmt.Errorf("allocating extraction directory: %w", err)
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", src, err)
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(src, ".tar.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip reader for %s: %w", src, err)
		}
		defer gz.Close()
		r = gz

	case strings.HasSuffix(src, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening xz reader for %s: %w", src, err)
		}
		r = xr

	default:
		return nil, fmt.Errorf("unrecognized archive extension: %s", filepath.Base(src))
	}

	if err := extractTar(r, dst); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", src, err)
	}

	return OpenDirectory(dst)
}

func extractTar(r io.Reader, dst string) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		path := filepath.Join(dst, header.Name)
		info := header.FileInfo()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, info.Mode()); err != nil {
				return fmt.Errorf("creating directory %s: %w", path, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", path, err)
			}

			out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
			if err != nil {
				return fmt.Errorf("creating file %s: %w", path, err)
			}

			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("writing file %s: %w", path, err)
			}

			if err := out.Close(); err != nil {
				return fmt.Errorf("closing file %s: %w", path, err)
			}
		}
	}
}

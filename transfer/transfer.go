/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package transfer expands a file or directory path into the ordered
// list of entries a sender batch walks.
package transfer

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/wxl482/local-sent/internal/errs"
)

// Entry is one file to be sent: its absolute source path, the
// slash-separated path it will be written under on the receiver, and
// its size at the time of the walk.
type Entry struct {
	AbsoluteSourcePath string
	RelativePath       string
	SizeBytes          int64
}

// BuildTransferEntries stats path. If it is a regular file, the single
// entry's RelativePath is its base name. If it is a directory, every
// regular file beneath it is walked and returned sorted by
// RelativePath; a directory containing zero regular files is rejected,
// since an empty transfer has nothing to negotiate a header for.
func BuildTransferEntries(path string) ([]Entry, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errs.Path("cannot stat source path", err)
	}

	if !fi.IsDir() {
		if !fi.Mode().IsRegular() {
			return nil, errs.Path("source is not a regular file", nil)
		}
		return []Entry{{
			AbsoluteSourcePath: path,
			RelativePath:       filepath.Base(path),
			SizeBytes:          fi.Size(),
		}}, nil
	}

	var entries []Entry
	walkErr := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			AbsoluteSourcePath: p,
			RelativePath:       filepath.ToSlash(rel),
			SizeBytes:          info.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, errs.Path("failed to walk source directory", walkErr)
	}
	if len(entries) == 0 {
		return nil, errs.Path("source directory contains no regular files", nil)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries, nil
}

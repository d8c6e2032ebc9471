/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package receiver

import (
	"errors"
	"io"
	"os"

	"github.com/wxl482/local-sent/digest"
	"github.com/wxl482/local-sent/pathsafe"
	"github.com/wxl482/local-sent/wire"
)

const tempSuffix = ".local-sent.part"

// chooseTargetPaths implements duplicate-aware target selection: walk
// stem(i).ext candidates starting at i=0; if a matching
// temp file for digest already exists, that candidate is a true resume.
// Otherwise the first candidate whose final path does not yet exist
// wins.
func chooseTargetPaths(outputDir string, h wire.Header) (finalPath, tempPath, base string, startIdx int, resuming bool, err error) {
	base, err = pathsafe.Resolve(outputDir, h.RelativePath)
	if err != nil {
		return "", "", "", 0, false, err
	}
	digestTag := h.Sha256Hex
	if len(digestTag) > 16 {
		digestTag = digestTag[:16]
	}

	for i := 0; i <= 9999; i++ {
		candidate := pathsafe.Candidate(base, i)
		temp := candidate + "." + digestTag + tempSuffix
		if _, statErr := os.Stat(temp); statErr == nil {
			return candidate, temp, base, i, true, nil
		}
		if _, statErr := os.Stat(candidate); os.IsNotExist(statErr) {
			return candidate, temp, base, i, false, nil
		}
	}
	return "", "", "", 0, false, errors.New("receiver: exhausted duplicate-avoidance candidates")
}

// prepareResume computes the resume offset and a hasher pre-seeded from
// the existing temp file's content. A missing or empty temp starts from
// zero; an oversized one is overwritten; a full-size one is re-hashed to
// distinguish a true resume from a stale same-size file; anything
// shorter resumes at its current size.
func prepareResume(tempPath string, fileSize int64, expectedHex string) (offset int64, hasher *digest.Streaming, err error) {
	hasher = digest.New()
	fi, statErr := os.Stat(tempPath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, hasher, nil
		}
		return 0, nil, statErr
	}

	size := fi.Size()
	switch {
	case size == 0:
		return 0, hasher, nil
	case size > fileSize:
		return 0, hasher, nil
	case size == fileSize:
		sum, sumErr := digest.FileSha256Hex(tempPath)
		if sumErr != nil {
			return 0, nil, sumErr
		}
		if sum == expectedHex {
			if seedErr := hasher.SeedFromFile(tempPath, size); seedErr != nil {
				return 0, nil, seedErr
			}
			return size, hasher, nil
		}
		return 0, hasher, nil
	default:
		if seedErr := hasher.SeedFromFile(tempPath, size); seedErr != nil {
			return 0, nil, seedErr
		}
		return size, hasher, nil
	}
}

// openTempFile opens tempPath ready to receive bytes starting at offset:
// truncated and created fresh when offset is 0, or opened for append at
// the existing size otherwise.
func openTempFile(tempPath string, offset int64) (*os.File, error) {
	if offset == 0 {
		return os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	f, err := os.OpenFile(tempPath, os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// promote renames tempPath onto the first available stem(i).ext
// candidate at or after startIdx, retrying the same sequence to win
// races against a concurrent writer. A cross-device rename falls back
// to copy-plus-delete.
func promote(tempPath, base string, startIdx int) (string, error) {
	for i := startIdx; i < 10000; i++ {
		candidate := pathsafe.Candidate(base, i)
		if _, statErr := os.Stat(candidate); statErr == nil {
			continue
		} else if !os.IsNotExist(statErr) {
			return "", statErr
		}

		err := os.Rename(tempPath, candidate)
		if err == nil {
			return candidate, nil
		}
		if isCrossDevice(err) {
			if cerr := copyAndRemove(tempPath, candidate); cerr != nil {
				if os.IsExist(cerr) {
					continue
				}
				return "", cerr
			}
			return candidate, nil
		}
		if os.IsExist(err) {
			continue
		}
		return "", err
	}
	return "", errors.New("receiver: exhausted promotion candidates")
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

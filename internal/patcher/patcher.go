// Package patcher makes and applies text patches to the realm table that
// ships inside the TradeSkillMaster addon, so realms the addon does not yet
// know about resolve to the right region.
package patcher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// ErrHashMismatch means the source is not the file the patch was made
	// against, usually because it was patched already.
	ErrHashMismatch = errors.New("patcher: source digest does not match")
	// ErrHunkFailed means part of a patch could not be placed.
	ErrHunkFailed = errors.New("patcher: patch did not apply cleanly")
)

// normalize turns CRLF line endings into LF so digests do not depend on the
// platform that wrote the file.
func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Hash returns the hex sha256 digest of text after newline normalization.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Diff returns the patch text that turns src into dst.
func Diff(src, dst string) string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(normalize(src), normalize(dst)))
}

// Patch applies diff to src. When digest is not empty, src must hash to it.
func Patch(src, diff, digest string) (string, error) {
	src = normalize(src)
	if digest != "" && Hash(src) != digest {
		return "", ErrHashMismatch
	}
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(diff)
	if err != nil {
		return "", fmt.Errorf("patcher: parse diff: %w", err)
	}
	out, applied := dmp.PatchApply(patches, src)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("%w: hunk %d", ErrHunkFailed, i+1)
		}
	}
	return out, nil
}

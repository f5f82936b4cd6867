package patcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// realmInfoPath is LibRealmInfo.lua relative to a game version folder.
var realmInfoPath = []string{
	"Interface", "AddOns", "TradeSkillMaster", "External", "EmbeddedLibs",
	"LibRealmInfo", "LibRealmInfo.lua",
}

// TSM patches LibRealmInfo.lua in every game version installed under a game
// directory.
type TSM struct {
	base   string
	logger *slog.Logger
}

// NewTSM creates a TSM patcher for the game directory base.
func NewTSM(base string, logger *slog.Logger) *TSM {
	return &TSM{base: base, logger: logger.With(slog.String("component", "patcher"))}
}

// Paths returns the LibRealmInfo.lua location of every game version, whether
// installed or not.
func (t *TSM) Paths() []string {
	out := make([]string, 0, len(domain.GameVersions))
	for _, v := range domain.GameVersions {
		parts := append([]string{t.base, v.FolderName()}, realmInfoPath...)
		out = append(out, filepath.Join(parts...))
	}
	return out
}

// PatchAll patches every installed copy in place and returns the paths that
// were written. A copy whose digest does not match is logged and skipped;
// any other failure is returned after the remaining copies are tried.
func (t *TSM) PatchAll(diff, digest string) ([]string, error) {
	var patched []string
	var errs []error
	for _, path := range t.Paths() {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("patcher: read %s: %w", path, err))
			continue
		}
		out, err := Patch(string(src), diff, digest)
		if errors.Is(err, ErrHashMismatch) {
			t.logger.Warn("skipping file, it may be patched already or updated by the addon",
				slog.String("path", path))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("patcher: %s: %w", path, err))
			continue
		}
		if err := os.WriteFile(path, []byte(out), fi.Mode().Perm()); err != nil {
			errs = append(errs, fmt.Errorf("patcher: write %s: %w", path, err))
			continue
		}
		t.logger.Info("patched", slog.String("path", path))
		patched = append(patched, path)
	}
	return patched, errors.Join(errs...)
}

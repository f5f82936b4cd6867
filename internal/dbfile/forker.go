package dbfile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Forker seeds missing local files from a remote store of published files.
type Forker struct {
	local  domain.FileStore
	remote domain.FileStore
	logger *slog.Logger
}

// NewForker creates a Forker copying from remote into local.
func NewForker(local, remote domain.FileStore, logger *slog.Logger) *Forker {
	return &Forker{
		local:  local,
		remote: remote,
		logger: logger.With(slog.String("component", "forker")),
	}
}

// Ensure copies name from the remote store when it is missing locally. The
// bytes are copied as is. A remote failure is logged and reported as
// forked == false; only a failing local store returns an error.
func (f *Forker) Ensure(ctx context.Context, name domain.DBFileName) (forked bool, err error) {
	key := name.String()
	ok, err := f.local.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dbfile: fork %s: %w", key, err)
	}
	if ok {
		return false, nil
	}

	data, err := f.remote.Read(ctx, key)
	if err != nil {
		f.logger.Warn("fork failed", slog.String("file", key), slog.String("error", err.Error()))
		return false, nil
	}
	if err := f.local.Write(ctx, key, data); err != nil {
		return false, fmt.Errorf("dbfile: fork %s: %w", key, err)
	}
	f.logger.Info("forked", slog.String("file", key), slog.Int("bytes", len(data)))
	return true, nil
}

package sync

import (
	"log/slog"

	"github.com/bundlesync/bundlesync/internal/manifest"
)

// cleanup removes every outer file that keep rejects. The store control files are never touched.
func (r *round) cleanup(keep func(name string) bool) {
	names, err := r.engine.store.ListFiles()
	if err != nil {
		slog.Warn("sync cleanup", "error", err)
		return
	}

	for _, name := range names {
		if manifest.IsReserved(name) || keep(name) {
			continue
		}
		if err := r.engine.store.RemoveFile(name); err != nil {
			slog.Warn("sync cleanup remove", "name", name, "error", err)
			continue
		}
		slog.Debug("sync cleanup removed", "name", name)
		r.result.Removed = append(r.result.Removed, name)
	}
}

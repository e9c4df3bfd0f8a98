package whitelist

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the runtime list whenever its file is written or replaced and
// calls onChange with the new content. It blocks until ctx is done.
//
// The parent directory is watched rather than the file, since atomic saves
// replace the file by rename.
func (r *Runtime) Watch(ctx context.Context, onChange func([]string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("whitelist watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("whitelist watcher: %w", err)
	}
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.log.Error().Err(err).Msg("runtime whitelist reload failed")
				continue
			}
			syms := r.Symbols()
			r.log.Info().Strs("symbols", syms).Str("op", evt.Op.String()).Msg("runtime whitelist reloaded")
			if onChange != nil {
				onChange(syms)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Error().Err(err).Msg("runtime whitelist watcher")
		}
	}
}

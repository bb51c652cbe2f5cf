package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const debounceDelay = 100 * time.Millisecond

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [template...]",
		Short: "Recompile templates whenever they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("")
			if err != nil {
				return err
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return errors.Wrap(err, "creating file watcher")
			}
			defer watcher.Close()
			for _, dir := range s.loader.SearchPath() {
				if err := addTree(watcher, dir); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			_ = s.check(out, errOut, args)
			a.log.WithField("dirs", s.loader.SearchPath()).Info("watching for changes")

			watchLoop(ctx, watcher.Events, watcher.Errors, debounceDelay, s.isTemplate, func(events []fsnotify.Event) {
				for _, ev := range events {
					if ev.Has(fsnotify.Create) {
						if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
							_ = addTree(watcher, ev.Name)
						}
					}
				}
				s.invalidate(events, a.log)
				_ = s.check(out, errOut, args)
			}, a.log)
			return nil
		},
	}
}

// addTree watches dir and every directory below it. A missing dir is
// skipped.
func addTree(w *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "watching %s", dir)
	}
	return nil
}

// watchLoop batches relevant events until no new one arrives for delay,
// then hands the batch to handle. It returns when ctx is done or a channel
// closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, delay time.Duration,
	relevant func(string) bool, handle func([]fsnotify.Event), log logrus.FieldLogger) {
	debounce := time.NewTimer(delay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	var pending []fsnotify.Event
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !relevant(ev.Name) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending = append(pending, ev)
			debounce.Reset(delay)

		case err, ok := <-errs:
			if !ok {
				return
			}
			log.WithError(err).Warn("watcher error")

		case <-debounce.C:
			if len(pending) > 0 {
				batch := pending
				pending = nil
				handle(batch)
			}
		}
	}
}

// invalidate drops the cached units of changed templates.
func (s *session) invalidate(events []fsnotify.Event, log logrus.FieldLogger) {
	for _, ev := range events {
		name, ok := s.loader.NameOf(ev.Name)
		if !ok {
			continue
		}
		log.WithFields(logrus.Fields{"template": name, "op": ev.Op.String()}).Debug("template changed")
		s.compiler.Invalidate(name)
	}
}

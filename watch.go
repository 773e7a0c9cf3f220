package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"chronophoto/config"
)

// settleDelay is how long the input directory must stay quiet before a
// re-render starts. Cameras and timelapse scripts drop frames in bursts;
// rendering once per burst beats rendering once per file.
const settleDelay = 2 * time.Second

// watchLoop renders once, then re-renders whenever new frame files land
// under the input pattern's directory. Render errors are logged but keep the
// loop alive; the loop ends when ctx is cancelled.
func watchLoop(ctx context.Context, cfg *config.Config) error {
	dir := patternDir(cfg.Pattern)
	log.Infof("Watching %v for new frames", dir)

	for ctx.Err() == nil {
		if err := render(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Errorf("Render failed: %v", err)
		}
		if err := waitForFrames(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// waitForFrames blocks until files are added or written under dir and the
// directory has then been quiet for settleDelay. Chmod-only events do not
// count as new frames.
func waitForFrames(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var settle *time.Timer
	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("Frame activity: %v", ev)
			if settle == nil {
				settle = time.NewTimer(settleDelay)
				settled = settle.C
				defer settle.Stop()
			} else {
				if !settle.Stop() {
					<-settle.C
				}
				settle.Reset(settleDelay)
			}
		case <-settled:
			return nil
		}
	}
}

// patternDir is the longest directory prefix of a glob pattern without
// metacharacters.
func patternDir(pattern string) string {
	i := strings.IndexAny(pattern, "*?[")
	if i < 0 {
		return filepath.Dir(pattern)
	}
	return filepath.Dir(pattern[:i])
}

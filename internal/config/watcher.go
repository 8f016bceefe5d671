package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hermes-analytics/hermes/pkg/chartopt"
)

var (
	watcherDebounce     = 100 * time.Millisecond
	watcherPollInterval = 5 * time.Second
)

// OptionWatcher reloads the chart option file whenever it changes on disk and
// hands the parsed document to a callback.
type OptionWatcher struct {
	path        string
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	lastModTime time.Time
	mu          sync.Mutex
	onChange    func(chartopt.Option)
}

// NewOptionWatcher creates a watcher for path. onChange runs on the watcher
// goroutine for every successfully parsed revision.
func NewOptionWatcher(path string, onChange func(chartopt.Option)) (*OptionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ow := &OptionWatcher{
		path:     filepath.Clean(path),
		watcher:  watcher,
		stopChan: make(chan struct{}),
		onChange: onChange,
	}
	if stat, err := os.Stat(ow.path); err == nil {
		ow.lastModTime = stat.ModTime()
	}
	return ow, nil
}

// Start begins watching the option file
func (ow *OptionWatcher) Start() error {
	// Watch the directory so editors that replace the file are still seen.
	dir := filepath.Dir(ow.path)
	if err := ow.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch chart option directory, falling back to polling")
		go ow.pollForChanges()
		return nil
	}

	go ow.watchForChanges()
	log.Info().Str("path", ow.path).Msg("Started watching chart option for changes")
	return nil
}

// Stop stops the watcher
func (ow *OptionWatcher) Stop() {
	ow.stopOnce.Do(func() {
		close(ow.stopChan)
		ow.watcher.Close()
	})
}

// Reload re-reads the option file immediately.
func (ow *OptionWatcher) Reload() {
	ow.reload()
}

func (ow *OptionWatcher) watchForChanges() {
	for {
		select {
		case event, ok := <-ow.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != ow.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce - wait a bit for write to complete
			time.Sleep(watcherDebounce)
			log.Debug().Str("event", event.Op.String()).Msg("Detected chart option change")
			ow.reload()

		case err, ok := <-ow.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Chart option watcher error")

		case <-ow.stopChan:
			return
		}
	}
}

// pollForChanges is a fallback that polls for changes
func (ow *OptionWatcher) pollForChanges() {
	ticker := time.NewTicker(watcherPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stat, err := os.Stat(ow.path)
			if err != nil {
				continue
			}
			ow.mu.Lock()
			changed := stat.ModTime().After(ow.lastModTime)
			ow.mu.Unlock()
			if changed {
				log.Debug().Msg("Detected chart option change via polling")
				ow.reload()
			}

		case <-ow.stopChan:
			return
		}
	}
}

func (ow *OptionWatcher) reload() {
	ow.mu.Lock()
	defer ow.mu.Unlock()

	opt, err := LoadChartOption(ow.path)
	if err != nil {
		// Half-written files parse on the next event.
		log.Warn().Err(err).Str("path", ow.path).Msg("Failed to reload chart option")
		return
	}
	if stat, err := os.Stat(ow.path); err == nil {
		ow.lastModTime = stat.ModTime()
	}

	log.Info().Str("path", ow.path).Int("keys", len(opt)).Msg("Reloaded chart option")
	if ow.onChange != nil {
		ow.onChange(opt)
	}
}

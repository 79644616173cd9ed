package live

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"cc_usage_mon/internal/alert"
	"cc_usage_mon/internal/ingest"
	"cc_usage_mon/internal/logger"
)

const (
	defaultTailLines = 50
	minReadInterval  = 500 * time.Millisecond
)

// Options configures a Watcher.
type Options struct {
	TailLines       int
	RefreshInterval time.Duration
	Thresholds      alert.Thresholds
	Notifier        *alert.Notifier
}

type readResult struct {
	path  string
	lines [][]byte
}

// Watcher observes a projects root for log file mutations, tails the
// changed files, and folds the new lines into a Tracker. All tracker
// mutation happens on the watch loop goroutine; consumers see state
// only through the Updates and Alerts channels.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	parser    *ingest.Parser
	tracker   *Tracker
	opts      Options

	modTimes map[string]time.Time
	limiters map[string]*rate.Limiter
	cancels  map[string]context.CancelFunc
	applied  map[string][][]byte // last tail window applied per path
	reads    chan readResult

	Updates chan Update
	Alerts  chan []alert.Alert
	Errors  chan error

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over root. Existing file content is
// not replayed; only mutations after Start are processed.
func NewWatcher(root string, parser *ingest.Parser, tracker *Tracker, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.TailLines <= 0 {
		opts.TailLines = defaultTailLines
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 2 * time.Second
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      root,
		parser:    parser,
		tracker:   tracker,
		opts:      opts,
		modTimes:  make(map[string]time.Time),
		limiters:  make(map[string]*rate.Limiter),
		cancels:   make(map[string]context.CancelFunc),
		applied:   make(map[string][][]byte),
		reads:     make(chan readResult, 64),
		Updates:   make(chan Update, 100),
		Alerts:    make(chan []alert.Alert, 10),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Start establishes watches on the root and its project directories,
// seeds modification times for existing files, and launches the watch
// loop.
func (w *Watcher) Start() {
	if err := w.fsWatcher.Add(w.root); err != nil {
		logger.Warn("cannot watch projects root", "error", err)
	}

	entries, err := os.ReadDir(w.root)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(w.root, entry.Name())
			if err := w.fsWatcher.Add(dir); err != nil {
				logger.Warn("cannot watch project directory", "dir", entry.Name(), "error", err)
				continue
			}
			w.seedModTimes(dir)
		}
	}

	go w.loop()
}

func (w *Watcher) seedModTimes(dir string) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+ingest.LogExt))
	if err != nil {
		return
	}
	for _, path := range files {
		if info, err := os.Stat(path); err == nil {
			w.modTimes[path] = info.ModTime()
		}
	}
}

// Stop shuts the watcher down: every watch handle is released (a
// failure is logged, not propagated), the refresh timer stops, and
// all session state is discarded. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsWatcher.Close(); err != nil {
			logger.Warn("releasing file watches failed", "error", err)
		}
	})
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			for _, cancel := range w.cancels {
				cancel()
			}
			w.tracker.Reset()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				continue
			}
			w.handleFSEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				continue
			}
			select {
			case w.Errors <- err:
			default:
			}

		case <-ticker.C:
			w.pollTrackedFiles()

		case res := <-w.reads:
			w.applyLines(res)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				logger.Warn("cannot watch new directory", "dir", filepath.Base(event.Name), "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ingest.LogExt) {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.maybeRead(event.Name)
	}
}

// pollTrackedFiles runs on the refresh timer and catches mutations
// the OS notification path missed.
func (w *Watcher) pollTrackedFiles() {
	for path := range w.modTimes {
		w.maybeRead(path)
	}
}

// maybeRead schedules a tail read of path when its modification time
// strictly advanced past the last-seen value and the per-file
// throttle allows it. Must be called from the loop goroutine.
func (w *Watcher) maybeRead(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	last, seen := w.modTimes[path]
	if seen && !info.ModTime().After(last) {
		return
	}

	lim, ok := w.limiters[path]
	if !ok {
		lim = rate.NewLimiter(rate.Every(minReadInterval), 1)
		w.limiters[path] = lim
	}
	// The modtime is recorded only once the throttle admits the read,
	// so a suppressed mutation stays pending and the next refresh tick
	// picks it up.
	if !lim.Allow() {
		return
	}
	w.modTimes[path] = info.ModTime()

	// A newer mutation supersedes any in-flight read of the same file.
	if cancel, ok := w.cancels[path]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancels[path] = cancel

	tailLines := w.opts.TailLines
	go func() {
		lines, err := readLastLines(path, tailLines)
		if err != nil {
			logger.Warn("tail read failed", "file", filepath.Base(path), "error", err)
			return
		}
		select {
		case w.reads <- readResult{path: path, lines: lines}:
		case <-ctx.Done():
		}
	}()
}

// applyLines is the single session-mutation point: it parses the
// tailed lines, folds each event into the tracker, and emits updates
// and alert batches. Consecutive tail windows of the same file
// overlap; only lines past the previously applied window are folded,
// so one appended line never re-counts its predecessors.
func (w *Watcher) applyLines(res readResult) {
	if cancel, ok := w.cancels[res.path]; ok {
		cancel()
		delete(w.cancels, res.path)
	}

	start := windowOverlap(w.applied[res.path], res.lines)
	w.applied[res.path] = res.lines

	for _, line := range res.lines[start:] {
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		ev, err := w.parser.ParseLine(line)
		if err != nil {
			if !errors.Is(err, ingest.ErrUnknownType) {
				logger.Debug("unparseable live line", "file", filepath.Base(res.path))
			}
			continue
		}

		update, ok := w.tracker.Apply(ev)
		if !ok {
			continue
		}

		select {
		case w.Updates <- update:
		default:
		}

		w.evaluateAlerts(update.Snapshot)
	}
}

// windowOverlap returns how many leading lines of next were already
// covered by the end of prev: the largest k for which prev's last k
// lines equal next's first k. Zero when the windows share nothing.
func windowOverlap(prev, next [][]byte) int {
	maxK := len(prev)
	if len(next) < maxK {
		maxK = len(next)
	}

	for k := maxK; k > 0; k-- {
		match := true
		for i := 0; i < k; i++ {
			if !bytes.Equal(prev[len(prev)-k+i], next[i]) {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

func (w *Watcher) evaluateAlerts(snap Snapshot) {
	if !w.opts.Thresholds.Enabled {
		return
	}

	rates := make([]float64, len(snap.BurnRates))
	for i, s := range snap.BurnRates {
		rates[i] = s.Rate
	}

	alerts := alert.Evaluate(alert.SessionUsage{
		SessionID:   snap.SessionID,
		SessionCost: snap.TotalCost,
		DailyCost:   w.tracker.DailyCost(time.Now()),
		BurnRates:   rates,
	}, w.opts.Thresholds)
	if len(alerts) == 0 {
		return
	}

	select {
	case w.Alerts <- alerts:
	default:
	}
	if w.opts.Notifier != nil {
		w.opts.Notifier.Notify(alerts)
	}
}

package ingest

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cc_usage_mon/internal/logger"
	"cc_usage_mon/internal/pricing"
)

// LogExt is the file extension of conversation log files.
const LogExt = ".jsonl"

// DefaultMaxFileBytes is the ceiling above which a log file is skipped
// rather than read.
const DefaultMaxFileBytes = 100 * 1024 * 1024

// LoadStats reports what happened during a batch load. Failures are
// counted, never fatal.
type LoadStats struct {
	FilesRead    int
	SkippedFiles []string // base names only
	ParseErrors  int
}

// LoadResult is the outcome of one batch pass over the log directory.
type LoadResult struct {
	Conversations []Conversation
	Stats         LoadStats
}

// Loader reads a root directory of per-project log subdirectories and
// produces one Conversation per log file.
type Loader struct {
	table        *pricing.Table
	maxFileBytes int64
}

// NewLoader creates a batch loader priced by the given table.
// maxFileBytes <= 0 selects the default ceiling.
func NewLoader(table *pricing.Table, maxFileBytes int64) *Loader {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Loader{table: table, maxFileBytes: maxFileBytes}
}

// LoadRoot ingests every log file under root. Each file is processed in
// its own goroutine with no shared state; completed conversations are
// merged at the end. A missing root yields an empty result with a
// diagnostic, not an error.
func (l *Loader) LoadRoot(root string) LoadResult {
	var result LoadResult

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		logger.Warn("cannot resolve log root", "error", err)
		return result
	}

	if _, err := os.Stat(rootAbs); err != nil {
		logger.Warn("log root not found", "root", rootAbs)
		return result
	}

	files := l.discoverFiles(rootAbs, &result.Stats)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, f := range files {
		wg.Add(1)
		go func(f logFile) {
			defer wg.Done()
			conv, ok := l.loadFile(f)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				result.Stats.SkippedFiles = append(result.Stats.SkippedFiles, filepath.Base(f.path))
				return
			}
			result.Stats.FilesRead++
			result.Stats.ParseErrors += conv.ParseErrors
			result.Conversations = append(result.Conversations, conv)
		}(f)
	}
	wg.Wait()

	// Deterministic output order regardless of goroutine completion.
	sort.Slice(result.Conversations, func(i, j int) bool {
		return result.Conversations[i].ID < result.Conversations[j].ID
	})
	sort.Strings(result.Stats.SkippedFiles)

	return result
}

type logFile struct {
	path    string
	project string
}

// discoverFiles lists log files under root. A file belongs to the
// project named by its immediate parent directory.
func (l *Loader) discoverFiles(rootAbs string, stats *LoadStats) []logFile {
	var files []logFile

	entries, err := os.ReadDir(rootAbs)
	if err != nil {
		logger.Warn("cannot read log root", "error", err)
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDir := filepath.Join(rootAbs, entry.Name())

		paths, err := filepath.Glob(filepath.Join(projectDir, "*"+LogExt))
		if err != nil {
			continue
		}
		for _, path := range paths {
			if !pathWithinRoot(path, rootAbs) {
				logger.Warn("skipping file outside log root", "file", filepath.Base(path))
				stats.SkippedFiles = append(stats.SkippedFiles, filepath.Base(path))
				continue
			}
			files = append(files, logFile{path: path, project: entry.Name()})
		}
	}

	return files
}

// pathWithinRoot reports whether path stays inside root after resolving
// to an absolute path.
func pathWithinRoot(path, rootAbs string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator))
}

// loadFile parses one log file into a conversation. Returns ok=false
// when the whole file had to be skipped.
func (l *Loader) loadFile(f logFile) (Conversation, bool) {
	info, err := os.Stat(f.path)
	if err != nil {
		logger.Warn("skipping unreadable file", "file", filepath.Base(f.path), "error", err)
		return Conversation{}, false
	}
	if info.Size() > l.maxFileBytes {
		logger.Warn("skipping oversized file", "file", filepath.Base(f.path), "bytes", info.Size())
		return Conversation{}, false
	}

	file, err := os.Open(f.path)
	if err != nil {
		logger.Warn("skipping unreadable file", "file", filepath.Base(f.path), "error", err)
		return Conversation{}, false
	}
	defer file.Close()

	id := strings.TrimSuffix(filepath.Base(f.path), LogExt)
	parser := NewParser(l.table)
	acc := NewAccumulator(id, f.project)

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024) // 2MB max line size

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := parser.ParseLine(line)
		if err != nil {
			acc.CountParseError()
			continue
		}
		acc.Add(ev)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("read error, keeping partial conversation", "file", filepath.Base(f.path), "error", err)
	}

	return acc.Finish(), true
}

// Package scanner orchestrates a full project scan: discover files,
// extract evidence through the cache, score each category, and assemble
// the resulting project context.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"patternguard/internal/cache"
	"patternguard/internal/evidence"
	"patternguard/internal/extract"
	"patternguard/internal/logging"
	"patternguard/internal/pgerrors"
	"patternguard/internal/score"
)

// Options tunes a scan. Zero values fall back to defaults.
type Options struct {
	MaxFiles    int           // file ceiling, 0 means default
	MaxFileSize int64         // per-file byte ceiling, 0 means default
	Timeout     time.Duration // whole-scan deadline, 0 means default
	Concurrency int           // extraction workers, 0 means GOMAXPROCS
	Exclude     []string      // glob patterns relative to the root
}

const (
	defaultMaxFiles    = 5000
	defaultMaxFileSize = 1 << 20 // 1 MiB
	defaultTimeout     = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxFiles <= 0 {
		o.MaxFiles = defaultMaxFiles
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = defaultMaxFileSize
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

// ProjectContext is the scan result handed to downstream consumers.
// Verdicts are advisory: confidence and evidence travel with every label
// so the consumer can weigh them.
type ProjectContext struct {
	ScanID          string                                       `json:"scanId"`
	Root            string                                       `json:"root"`
	Meta            Metadata                                     `json:"meta"`
	Verdicts        map[evidence.Category]evidence.PatternVerdict `json:"verdicts"`
	FilesScanned    int                                          `json:"filesScanned"`
	FilesFailed     int                                          `json:"filesFailed"`
	ExtractionCalls int64                                        `json:"extractionCalls"`
	Partial         bool                                         `json:"partial"`
	Warnings        []string                                     `json:"warnings,omitempty"`
	Duration        time.Duration                                `json:"durationNs"`
	GeneratedAt     time.Time                                    `json:"generatedAt"`
}

// Scanner runs scans. One scanner may serve many scans; its cache
// carries extraction results across them.
type Scanner struct {
	opts      Options
	extractor *extract.Extractor
	cache     *cache.Cache
	logger    *logging.Logger
}

func New(opts Options, c *cache.Cache, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if c == nil {
		c = cache.New(logger, nil)
	}
	return &Scanner{
		opts:      opts.withDefaults(),
		extractor: extract.NewExtractor(),
		cache:     c,
		logger:    logger,
	}
}

// ExtractionCalls reports how many real extractions the scanner has run
// since creation. Cache hits do not count.
func (s *Scanner) ExtractionCalls() int64 {
	return s.extractor.Calls()
}

// Scan inspects the project under root and returns its context. The only
// fatal failures are an unreadable root and invalid options; everything
// else degrades to warnings, partial results, or unknown verdicts.
func (s *Scanner) Scan(ctx context.Context, root string) (*ProjectContext, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, pgerrors.New(pgerrors.RootUnreadable, fmt.Sprintf("cannot resolve root %q", root), err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, pgerrors.New(pgerrors.RootUnreadable, fmt.Sprintf("cannot read root %q", root), err)
	}
	if !info.IsDir() {
		return nil, pgerrors.New(pgerrors.RootUnreadable, fmt.Sprintf("root %q is not a directory", root), nil)
	}

	found, err := discover(absRoot, s.opts)
	if err != nil {
		return nil, pgerrors.New(pgerrors.InternalError, "file discovery failed", err)
	}

	pc := &ProjectContext{
		ScanID:   uuid.NewString(),
		Root:     absRoot,
		Meta:     detectMetadata(absRoot, found.files, s.logger),
		Verdicts: make(map[evidence.Category]evidence.PatternVerdict, len(evidence.Categories())),
		Warnings: found.warnings,
	}

	s.logger.Info("scan started", map[string]interface{}{
		"scanId": pc.ScanID,
		"root":   absRoot,
		"files":  len(found.files),
	})

	scanCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		byCat    = make(map[evidence.Category][]evidence.Evidence)
		failures []string
		scanned  int
	)

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(s.opts.Concurrency)
	for _, rel := range found.files {
		if gctx.Err() != nil {
			pc.Partial = true
			break
		}
		rel := rel
		g.Go(func() error {
			items, err := s.scanFile(gctx, absRoot, rel)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", rel, err))
				return nil
			}
			scanned++
			for _, item := range items {
				byCat[item.Category] = append(byCat[item.Category], item)
			}
			return nil
		})
	}
	_ = g.Wait()

	if scanCtx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
		pc.Partial = true
		pc.Warnings = append(pc.Warnings, fmt.Sprintf("scan deadline of %s exceeded, results cover %d of %d files", s.opts.Timeout, scanned, len(found.files)))
	}

	sort.Strings(failures)
	for _, f := range failures {
		pc.Warnings = append(pc.Warnings, "extraction failed for "+f)
	}

	pc.FilesScanned = scanned
	pc.FilesFailed = len(failures)
	pc.ExtractionCalls = s.extractor.Calls()

	for _, cat := range evidence.Categories() {
		pc.Verdicts[cat] = score.Score(cat, byCat[cat])
	}

	pc.Duration = time.Since(start)
	pc.GeneratedAt = time.Now().UTC()

	s.logger.Info("scan finished", map[string]interface{}{
		"scanId":       pc.ScanID,
		"filesScanned": pc.FilesScanned,
		"filesFailed":  pc.FilesFailed,
		"partial":      pc.Partial,
		"durationMs":   pc.Duration.Milliseconds(),
	})
	return pc, nil
}

// scanFile reads one file and resolves its evidence through the cache.
// Unchanged files are answered from cached extraction results.
func (s *Scanner) scanFile(ctx context.Context, root, rel string) ([]evidence.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := filepath.Join(root, rel)
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}

	fp := cache.Fingerprint(content)
	return s.cache.GetOrExtract(rel, fp, func() ([]evidence.Evidence, error) {
		return s.extractor.Extract(ctx, extract.SourceFile{
			Path:        rel,
			Content:     content,
			Fingerprint: fp,
			ModTime:     info.ModTime(),
		})
	})
}

// Package scanner implements the static content scanner for agent skill
// packages: it walks a skill directory (or a single file), classifies each
// file, applies the rule catalog line by line, runs the base64 payload
// heuristic and aggregates everything into a deterministic Result.
package scanner

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/skillscan/pkg/logger"
	"github.com/jingkaihe/skillscan/pkg/rules"
	"github.com/jingkaihe/skillscan/pkg/telemetry"
)

// DefaultMaxFileBytes is how much of each file is read. Larger files are
// scanned up to this limit and a warning is logged.
const DefaultMaxFileBytes int64 = 5 << 20

// ErrPathNotExist is returned when the scan target does not exist.
var ErrPathNotExist = errors.New("path does not exist")

// Scanner scans skill directories and files. It holds no per-scan state and
// is safe for concurrent use.
type Scanner struct {
	catalog      *rules.Catalog
	matcher      *Matcher
	workers      int
	maxFileBytes int64
	exclude      []string
}

// Option configures a Scanner.
type Option func(*Scanner) error

// WithCatalog replaces the built-in rule catalog.
func WithCatalog(c *rules.Catalog) Option {
	return func(s *Scanner) error {
		if c == nil {
			return errors.New("catalog cannot be nil")
		}
		s.catalog = c
		return nil
	}
}

// WithWorkers bounds the number of files processed concurrently. Zero or a
// negative value uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) error {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		s.workers = n
		return nil
	}
}

// WithMaxFileBytes sets how many bytes of each file are scanned.
func WithMaxFileBytes(n int64) Option {
	return func(s *Scanner) error {
		if n <= 0 {
			return errors.Errorf("max file bytes must be positive, got %d", n)
		}
		s.maxFileBytes = n
		return nil
	}
}

// WithExclude skips files and directories whose slash-separated path
// relative to the scan root matches any of the doublestar patterns.
func WithExclude(patterns ...string) Option {
	return func(s *Scanner) error {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return errors.Errorf("invalid exclude pattern: %s", p)
			}
		}
		s.exclude = append(s.exclude, patterns...)
		return nil
	}
}

// New creates a scanner using the built-in catalog unless overridden.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		workers:      runtime.GOMAXPROCS(0),
		maxFileBytes: DefaultMaxFileBytes,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.catalog == nil {
		s.catalog = rules.Default()
	}
	s.matcher = NewMatcher(s.catalog)
	return s, nil
}

// Catalog returns the catalog the scanner evaluates.
func (s *Scanner) Catalog() *rules.Catalog {
	return s.catalog
}

// fileJob is a file selected for scanning by the walk.
type fileJob struct {
	abs    string
	rel    string
	target rules.TargetType
}

// fileOutcome is the per-file result: either scanned (possibly with zero
// findings) or skipped with a reason. A skipped file never fails the scan.
type fileOutcome struct {
	scanned    bool
	skipReason string
	findings   []Finding
}

func skipped(reason string) fileOutcome {
	return fileOutcome{skipReason: reason}
}

// Scan scans a skill directory recursively, or a single file. The findings
// of the returned result are ordered by severity, file and line. A
// nonexistent path yields an error wrapping ErrPathNotExist.
func (s *Scanner) Scan(ctx context.Context, path string) (*Result, error) {
	var result *Result
	err := telemetry.WithSpan(ctx, "scanner.scan", func(ctx context.Context) error {
		var err error
		result, err = s.scan(ctx, path)
		if err == nil {
			telemetry.SetAttributes(ctx,
				attribute.Int("scan.files_scanned", result.FilesScanned),
				attribute.Int("scan.findings", len(result.Findings)),
				attribute.String("scan.max_severity", string(result.MaxSeverity())),
			)
		}
		return err
	}, attribute.String("scan.path", path))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Scanner) scan(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrPathNotExist, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	result := &Result{SkillPath: path, Findings: []Finding{}}

	if !info.IsDir() {
		outcome := s.scanFile(ctx, fileJob{abs: path, rel: path, target: rules.Classify(path)})
		if outcome.scanned {
			result.FilesScanned = 1
			result.Findings = append(result.Findings, outcome.findings...)
		} else {
			logger.G(ctx).WithField("file", path).WithField("reason", outcome.skipReason).Debug("skipped file")
		}
		SortFindings(result.Findings)
		return result, nil
	}

	jobs, err := s.collect(ctx, path)
	if err != nil {
		return nil, err
	}

	outcomes := make([]fileOutcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.scanFile(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "scan interrupted")
	}

	log := logger.G(ctx)
	for i, o := range outcomes {
		if !o.scanned {
			log.WithField("file", jobs[i].rel).WithField("reason", o.skipReason).Debug("skipped file")
			continue
		}
		result.FilesScanned++
		result.Findings = append(result.Findings, o.findings...)
	}
	SortFindings(result.Findings)

	log.WithField("path", path).
		WithField("files", result.FilesScanned).
		WithField("findings", len(result.Findings)).
		Debug("scan complete")
	return result, nil
}

// collect walks root and returns the files eligible for matching. Symbolic
// links and dot-prefixed entries are skipped before classification, and
// files classified as other never become jobs.
func (s *Scanner) collect(ctx context.Context, root string) ([]fileJob, error) {
	walkRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		walkRoot = resolved
	}

	var jobs []fileJob
	err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == walkRoot {
				return errors.Wrapf(err, "failed to read %s", root)
			}
			logger.G(ctx).WithError(err).WithField("file", p).Debug("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == walkRoot {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(walkRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		target := rules.Classify(d.Name())
		if target == rules.TargetOther {
			return nil
		}
		jobs = append(jobs, fileJob{abs: p, rel: rel, target: target})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// scanFile reads one file and runs the matcher and payload heuristic on it.
// Content is decoded lossily: invalid UTF-8 is dropped and NUL bytes are
// kept, so a stray binary byte cannot hide the rest of the file.
func (s *Scanner) scanFile(ctx context.Context, job fileJob) fileOutcome {
	if job.target == rules.TargetOther {
		return skipped("not a scannable file type")
	}

	data, truncated, err := readLimited(job.abs, s.maxFileBytes)
	if err != nil {
		return skipped("unreadable: " + err.Error())
	}
	if truncated {
		logger.G(ctx).WithField("file", job.rel).
			WithField("limit", s.maxFileBytes).
			Warn("file exceeds size limit, scanning only the leading bytes")
	}
	content := strings.ToValidUTF8(string(data), "")

	findings := s.matcher.Match(content, job.rel, job.target)
	findings = append(findings, DetectObfuscatedPayload(content, job.rel)...)
	return fileOutcome{scanned: true, findings: findings}
}

// readLimited reads at most limit bytes of path and reports whether the
// file had more.
func readLimited(path string, limit int64) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patternguard/internal/cache"
	"patternguard/internal/evidence"
	"patternguard/internal/logging"
	"patternguard/internal/pgerrors"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func touch(t *testing.T, root, rel string, when time.Time) {
	t.Helper()
	if err := os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), when, when); err != nil {
		t.Fatal(err)
	}
}

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	return New(Options{}, cache.New(logging.NewNop(), nil), logging.NewNop())
}

func TestScanUnreadableRootIsFatal(t *testing.T) {
	s := newScanner(t)
	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error")
	}
	if pgerrors.CodeOf(err) != pgerrors.RootUnreadable {
		t.Errorf("CodeOf(err) = %s, want %s", pgerrors.CodeOf(err), pgerrors.RootUnreadable)
	}
}

func TestScanRootMustBeDirectory(t *testing.T) {
	root := writeProject(t, map[string]string{"a.js": "const a = 1;"})
	s := newScanner(t)
	_, err := s.Scan(context.Background(), filepath.Join(root, "a.js"))
	if pgerrors.CodeOf(err) != pgerrors.RootUnreadable {
		t.Errorf("CodeOf(err) = %s, want %s", pgerrors.CodeOf(err), pgerrors.RootUnreadable)
	}
}

func TestScanEmptyProjectYieldsUnknownVerdicts(t *testing.T) {
	s := newScanner(t)
	pc, err := s.Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, cat := range evidence.Categories() {
		v := pc.Verdicts[cat]
		if v.Label != evidence.LabelUnknown || v.Confidence != 0 {
			t.Errorf("%s: got %s/%d, want unknown/0", cat, v.Label, v.Confidence)
		}
	}
	if pc.Partial {
		t.Error("empty scan should not be partial")
	}
}

func TestScanDetectsCookieAuth(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/auth.js":       "function auth(req, res) { const token = req.cookies.sessionToken; }",
		"src/middleware.js": "function check(req) { return req.cookies.session; }",
	})
	s := newScanner(t)
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	v := pc.Verdicts[evidence.CategoryAuthentication]
	if v.Label != evidence.LabelCookieToken {
		t.Fatalf("label = %s, want %s", v.Label, evidence.LabelCookieToken)
	}
	if v.Confidence <= 0 || v.Confidence >= 100 {
		t.Errorf("confidence = %d, want within (0, 100)", v.Confidence)
	}
	if len(v.Evidence) == 0 {
		t.Error("winning verdict must carry evidence")
	}
	if pc.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", pc.FilesScanned)
	}
}

func TestScanRecentMigrationWins(t *testing.T) {
	root := writeProject(t, map[string]string{
		"legacy/auth.js":    "const token = req.cookies.authToken;",
		"legacy/session.js": "const session = req.cookies.session;",
		"src/auth.ts":       "const token = localStorage.getItem('token');",
		"src/client.ts":     "localStorage.setItem('token', token);",
	})
	old := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	touch(t, root, "legacy/auth.js", old)
	touch(t, root, "legacy/session.js", old)
	touch(t, root, "src/auth.ts", recent)
	touch(t, root, "src/client.ts", recent)

	s := newScanner(t)
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	v := pc.Verdicts[evidence.CategoryAuthentication]
	if v.Label != evidence.LabelLocalStorageToken {
		t.Fatalf("label = %s, want %s", v.Label, evidence.LabelLocalStorageToken)
	}

	var sawCookie bool
	for _, r := range v.Rejected {
		if r.Label == evidence.LabelCookieToken {
			sawCookie = true
			if r.EvidenceCount == 0 {
				t.Error("rejected label must retain its evidence count")
			}
		}
	}
	if !sawCookie {
		t.Error("superseded convention must appear in Rejected")
	}
}

func TestScanCorroborationAcrossFiles(t *testing.T) {
	one := writeProject(t, map[string]string{
		"a.js": "res.json({ success: true, data: users });",
	})
	five := map[string]string{}
	for _, name := range []string{"a.js", "b.js", "c.js", "d.js", "e.js"} {
		five[name] = "res.json({ success: true, data: users });"
	}
	many := writeProject(t, five)

	s1, s5 := newScanner(t), newScanner(t)
	pcOne, err := s1.Scan(context.Background(), one)
	if err != nil {
		t.Fatal(err)
	}
	pcMany, err := s5.Scan(context.Background(), many)
	if err != nil {
		t.Fatal(err)
	}

	lo := pcOne.Verdicts[evidence.CategoryAPIResponses].Confidence
	hi := pcMany.Verdicts[evidence.CategoryAPIResponses].Confidence
	if hi <= lo {
		t.Errorf("five corroborating files (%d) must outrank one (%d)", hi, lo)
	}
}

func TestScanSurvivesMalformedFile(t *testing.T) {
	root := writeProject(t, map[string]string{
		"good1.js": "const token = req.cookies.sessionToken;",
		"good2.js": "const token = req.cookies.sessionToken;",
		"good3.js": "const token = req.cookies.sessionToken;",
		"junk.js":  "\x00\x01\x02 not a ) program {{{",
	})
	s := newScanner(t)
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if v := pc.Verdicts[evidence.CategoryAuthentication]; v.Label != evidence.LabelCookieToken {
		t.Errorf("label = %s, want %s despite junk file", v.Label, evidence.LabelCookieToken)
	}
	if pc.FilesScanned+pc.FilesFailed != 4 {
		t.Errorf("scanned %d + failed %d, want 4 total", pc.FilesScanned, pc.FilesFailed)
	}
}

func TestRescanHitsCache(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": "const token = req.cookies.sessionToken;",
		"b.js": "res.json({ success: true, data: out });",
	})
	s := newScanner(t)

	first, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := s.ExtractionCalls()

	second, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if s.ExtractionCalls() != callsAfterFirst {
		t.Errorf("re-scan ran %d new extractions, want 0", s.ExtractionCalls()-callsAfterFirst)
	}

	for _, cat := range evidence.Categories() {
		a, b := first.Verdicts[cat], second.Verdicts[cat]
		if a.Label != b.Label || a.Confidence != b.Confidence {
			t.Errorf("%s: re-scan verdict drifted from %s/%d to %s/%d", cat, a.Label, a.Confidence, b.Label, b.Confidence)
		}
	}
}

func TestEditedFileInvalidatesOnlyItself(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": "const token = req.cookies.sessionToken;",
		"b.js": "res.json({ success: true, data: out });",
	})
	s := newScanner(t)
	if _, err := s.Scan(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	before := s.ExtractionCalls()

	if err := os.WriteFile(filepath.Join(root, "a.js"), []byte("const token = localStorage.getItem('token');"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	if got := s.ExtractionCalls() - before; got != 1 {
		t.Errorf("edited one file, ran %d extractions, want 1", got)
	}
}

func TestScanHonorsExcludes(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/app.js":       "const token = req.cookies.sessionToken;",
		"generated/gen.js": "const token = localStorage.getItem('token');",
	})
	s := New(Options{Exclude: []string{"generated/**"}}, cache.New(logging.NewNop(), nil), logging.NewNop())
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", pc.FilesScanned)
	}
	if v := pc.Verdicts[evidence.CategoryAuthentication]; v.Label != evidence.LabelCookieToken {
		t.Errorf("label = %s, excluded file leaked into the verdict", v.Label)
	}
}

func TestEntryFileSurvivesExcludes(t *testing.T) {
	root := writeProject(t, map[string]string{
		"server.js": "const token = req.cookies.sessionToken;",
		"lib/a.js":  "const x = 1;",
	})
	s := New(Options{Exclude: []string{"**.js"}}, cache.New(logging.NewNop(), nil), logging.NewNop())
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 1 {
		t.Fatalf("FilesScanned = %d, want server.js alone", pc.FilesScanned)
	}
	if v := pc.Verdicts[evidence.CategoryAuthentication]; v.Label != evidence.LabelCookieToken {
		t.Errorf("entry file was excluded from the scan, label = %s", v.Label)
	}
}

func TestScanSkipsDependencyDirs(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.js":                    "const token = req.cookies.sessionToken;",
		"node_modules/lib/index.js": "localStorage.getItem('x');",
		"dist/bundle.js":            "localStorage.getItem('x');",
	})
	s := newScanner(t)
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", pc.FilesScanned)
	}
}

func TestScanFileCeilingProducesWarning(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a.js", "b.js", "c.js", "d.js"} {
		files[name] = "const x = 1;"
	}
	root := writeProject(t, files)
	s := New(Options{MaxFiles: 2}, cache.New(logging.NewNop(), nil), logging.NewNop())
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", pc.FilesScanned)
	}
	if len(pc.Warnings) == 0 {
		t.Error("hitting the file ceiling must produce a warning")
	}
}

func TestScanOversizedFileSkipped(t *testing.T) {
	big := make([]byte, 64)
	for i := range big {
		big[i] = 'x'
	}
	root := writeProject(t, map[string]string{
		"small.js": "const token = req.cookies.sessionToken;",
		"big.js":   "// " + string(big),
	})
	s := New(Options{MaxFileSize: 50}, cache.New(logging.NewNop(), nil), logging.NewNop())
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", pc.FilesScanned)
	}
	if len(pc.Warnings) == 0 {
		t.Error("oversized file must be recorded as a warning")
	}
}

func TestScanCancelledContext(t *testing.T) {
	root := writeProject(t, map[string]string{"a.js": "const x = 1;"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScanner(t)
	pc, err := s.Scan(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if pc.FilesScanned != 0 {
		t.Errorf("cancelled scan still processed %d files", pc.FilesScanned)
	}
}

func TestScanIDsAreUnique(t *testing.T) {
	root := writeProject(t, map[string]string{"a.js": "const x = 1;"})
	s := newScanner(t)
	a, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if a.ScanID == "" || a.ScanID == b.ScanID {
		t.Errorf("scan IDs must be unique and non-empty, got %q and %q", a.ScanID, b.ScanID)
	}
}

func TestScanVerdictCoversEveryCategory(t *testing.T) {
	root := writeProject(t, map[string]string{"a.js": "const token = req.cookies.sessionToken;"})
	s := newScanner(t)
	pc, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	for _, cat := range evidence.Categories() {
		if _, ok := pc.Verdicts[cat]; !ok {
			t.Errorf("missing verdict for %s", cat)
		}
	}
}

func TestScanErrorsCarrySuggestedFixes(t *testing.T) {
	s := newScanner(t)
	_, err := s.Scan(context.Background(), "/definitely/not/a/real/root")
	var scanErr *pgerrors.ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *pgerrors.ScanError, got %T", err)
	}
	if len(scanErr.SuggestedFixes) == 0 {
		t.Error("root errors should suggest fixes")
	}
}

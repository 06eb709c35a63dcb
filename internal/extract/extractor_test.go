package extract

import (
	"context"
	"testing"
	"time"

	"patternguard/internal/evidence"
)

func extractSource(t *testing.T, path, source string) []evidence.Evidence {
	t.Helper()
	e := NewExtractor()
	found, err := e.Extract(context.Background(), SourceFile{
		Path:    path,
		Content: []byte(source),
		ModTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("Extract(%s) error: %v", path, err)
	}
	return found
}

func hasLabel(items []evidence.Evidence, cat evidence.Category, label string) bool {
	for _, ev := range items {
		if ev.Category == cat && ev.Label == label {
			return true
		}
	}
	return false
}

func TestExtractLocalStorageToken(t *testing.T) {
	src := `
function saveSession(token) {
  localStorage.setItem('authToken', token);
}
const token = localStorage.getItem('authToken');
`
	found := extractSource(t, "src/auth.js", src)
	if !hasLabel(found, evidence.CategoryAuthentication, evidence.LabelLocalStorageToken) {
		t.Fatalf("expected localstorage-token evidence, got %+v", found)
	}
}

func TestExtractCookieToken(t *testing.T) {
	src := `
function requireAuth(req, res, next) {
  const token = req.cookies.sessionToken;
  if (!token) return res.status(401).json({ error: 'unauthorized' });
  next();
}
`
	found := extractSource(t, "middleware/auth.js", src)
	if !hasLabel(found, evidence.CategoryAuthentication, evidence.LabelCookieToken) {
		t.Fatalf("expected cookie-token evidence, got %+v", found)
	}
}

func TestExtractAuthorizationHeader(t *testing.T) {
	src := `
export function bearerToken(req: Request): string | null {
  const header = req.headers.authorization;
  return header ? header.replace('Bearer ', '') : null;
}
`
	found := extractSource(t, "src/token.ts", src)
	if !hasLabel(found, evidence.CategoryAuthentication, evidence.LabelAuthHeader) {
		t.Fatalf("expected authorization-header evidence, got %+v", found)
	}
}

func TestExtractJWTVerify(t *testing.T) {
	src := `
const jwt = require('jsonwebtoken');
function check(token) {
  return jwt.verify(token, process.env.SECRET);
}
`
	found := extractSource(t, "lib/jwt.js", src)
	if !hasLabel(found, evidence.CategoryAuthentication, evidence.LabelJWTVerify) {
		t.Fatalf("expected jwt-verify evidence, got %+v", found)
	}
}

func TestExtractEnvelopeSuccessError(t *testing.T) {
	src := `
app.get('/users', async (req, res) => {
  const users = await db.users.all();
  res.json({ success: true, data: users, error: null });
});
`
	found := extractSource(t, "routes/users.js", src)
	if !hasLabel(found, evidence.CategoryAPIResponses, evidence.LabelEnvelopeSuccessError) {
		t.Fatalf("expected envelope-success-error evidence, got %+v", found)
	}
}

func TestExtractDataWrapperOnlyInResponsePosition(t *testing.T) {
	inResponse := `res.json({ data: users });`
	elsewhere := `const chart = { data: points };`

	found := extractSource(t, "a.js", inResponse)
	if !hasLabel(found, evidence.CategoryAPIResponses, evidence.LabelDataWrapper) {
		t.Fatalf("expected data-wrapper for response position, got %+v", found)
	}

	found = extractSource(t, "b.js", elsewhere)
	if hasLabel(found, evidence.CategoryAPIResponses, evidence.LabelDataWrapper) {
		t.Fatalf("bare {data} literal outside a response call should not match, got %+v", found)
	}
}

func TestExtractStatusJSON(t *testing.T) {
	src := `res.status(404).json({ message: 'not found' });`
	found := extractSource(t, "handler.js", src)
	if !hasLabel(found, evidence.CategoryAPIResponses, evidence.LabelStatusJSON) {
		t.Fatalf("expected status-json evidence, got %+v", found)
	}
}

func TestExtractBarePayload(t *testing.T) {
	src := `
app.get('/users', async (req, res) => {
  const users = await db.users.all();
  res.json(users);
});
`
	found := extractSource(t, "routes/list.js", src)
	if !hasLabel(found, evidence.CategoryAPIResponses, evidence.LabelBarePayload) {
		t.Fatalf("expected bare-payload evidence, got %+v", found)
	}
}

func TestExtractCatchLogVersusRethrow(t *testing.T) {
	logSrc := `
try {
  doWork();
} catch (e) {
  console.error('work failed', e);
}
`
	rethrowSrc := `
try {
  doWork();
} catch (e) {
  throw new AppError('work failed', e);
}
`
	found := extractSource(t, "log.js", logSrc)
	if !hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelCatchLog) {
		t.Fatalf("expected catch-log evidence, got %+v", found)
	}
	if hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelCatchRethrow) {
		t.Fatalf("logging catch should not also match catch-rethrow, got %+v", found)
	}

	found = extractSource(t, "rethrow.js", rethrowSrc)
	if !hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelCatchRethrow) {
		t.Fatalf("expected catch-rethrow evidence, got %+v", found)
	}
	if hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelCatchLog) {
		t.Fatalf("rethrowing catch should not also match catch-log, got %+v", found)
	}
}

func TestExtractErrorMiddleware(t *testing.T) {
	src := `
function errorHandler(err, req, res, next) {
  res.status(500).json({ error: err.message });
}
app.use(errorHandler);
`
	found := extractSource(t, "middleware/errors.js", src)
	if !hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelErrorMiddleware) {
		t.Fatalf("expected error-middleware evidence, got %+v", found)
	}
}

func TestExtractGoResultReturn(t *testing.T) {
	src := `package store

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}
`
	found := extractSource(t, "store/config.go", src)
	if !hasLabel(found, evidence.CategoryErrorHandling, evidence.LabelResultReturn) {
		t.Fatalf("expected result-return evidence, got %+v", found)
	}
}

func TestExtractPythonDecorators(t *testing.T) {
	src := `
@app.route('/profile')
@login_required
def profile():
    return jsonify({'data': current_user.to_dict()})
`
	found := extractSource(t, "views.py", src)
	if !hasLabel(found, evidence.CategoryAuthentication, evidence.LabelSessionMiddleware) {
		t.Fatalf("expected session-middleware evidence from login_required, got %+v", found)
	}
}

func TestExtractUnsupportedLanguage(t *testing.T) {
	e := NewExtractor()
	found, err := e.Extract(context.Background(), SourceFile{
		Path:    "README.md",
		Content: []byte("# hello"),
	})
	if err != nil || found != nil {
		t.Fatalf("unsupported language should yield nil, nil; got %v, %v", found, err)
	}
	if e.Calls() != 0 {
		t.Errorf("unsupported files must not count as extraction calls, got %d", e.Calls())
	}
}

func TestExtractMalformedSourceIsSoft(t *testing.T) {
	// Badly broken syntax still parses into a tree with error nodes;
	// extraction must not panic and must not abort.
	src := `function ( { res.json( } catch`
	e := NewExtractor()
	_, err := e.Extract(context.Background(), SourceFile{
		Path:    "broken.js",
		Content: []byte(src),
		ModTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("partial syntax should be tolerated, got %v", err)
	}
}

func TestEvidenceCarriesFileAndLine(t *testing.T) {
	src := "const nothing = 1;\n\nconst token = localStorage.getItem('token');\n"
	found := extractSource(t, "src/session.js", src)
	if len(found) == 0 {
		t.Fatal("expected evidence")
	}
	for _, ev := range found {
		if ev.File != "src/session.js" {
			t.Errorf("evidence missing file reference: %+v", ev)
		}
		if ev.Line <= 0 {
			t.Errorf("evidence missing line reference: %+v", ev)
		}
		if ev.Excerpt == "" {
			t.Errorf("evidence missing excerpt: %+v", ev)
		}
	}
}

func TestExtractionCallCounter(t *testing.T) {
	e := NewExtractor()
	file := SourceFile{Path: "x.js", Content: []byte("const a = 1;")}
	for i := 0; i < 3; i++ {
		if _, err := e.Extract(context.Background(), file); err != nil {
			t.Fatal(err)
		}
	}
	if e.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", e.Calls())
	}
}

package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"patternguard/internal/evidence"
	"patternguard/internal/lang"
)

// maxMatchSpan bounds how much of a node's text a matcher will inspect.
// Construct shapes are local idioms; anything larger is a container node.
const maxMatchSpan = 4096

// Matcher inspects one AST node and reports whether the node proves the
// construct shape. text is the lowercased node content, already bounded.
type Matcher func(node *sitter.Node, src []byte, text string) bool

// ConstructShape is one recognized construct in the extraction catalogue.
// The catalogue is data: adding a shape never touches aggregation logic.
// Strength is fixed by shape, not by project: a direct declaration is
// stronger than an inferred usage.
type ConstructShape struct {
	Category  evidence.Category
	Label     string
	Strength  float64
	NodeTypes []string        // AST node types this shape inspects
	Languages []lang.Language // nil means every supported language
	Match     Matcher
}

func (s ConstructShape) appliesTo(l lang.Language) bool {
	if len(s.Languages) == 0 {
		return true
	}
	for _, sl := range s.Languages {
		if sl == l {
			return true
		}
	}
	return false
}

var jsFamily = []lang.Language{lang.LangJavaScript, lang.LangTypeScript, lang.LangTSX}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func mentionsToken(text string) bool {
	return containsAny(text, "token", "jwt", "auth", "session", "credential")
}

// objectKeys collects the literal key names of an object/dictionary node.
func objectKeys(node *sitter.Node, src []byte) []string {
	var keys []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		pair := node.NamedChild(i)
		if pair == nil || pair.Type() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		if key == nil {
			continue
		}
		keys = append(keys, strings.Trim(key.Content(src), `"'`+"`"))
	}
	return keys
}

func hasKey(keys []string, name string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// hasEnclosingResponseCall reports whether an ancestor within a few levels
// is a response-shaping call (res.json, res.send, jsonify, ...).
func hasEnclosingResponseCall(node *sitter.Node, src []byte) bool {
	cur := node.Parent()
	for depth := 0; cur != nil && depth < 4; depth++ {
		if cur.Type() == "call_expression" || cur.Type() == "call" {
			callee := cur.ChildByFieldName("function")
			if callee != nil {
				text := strings.ToLower(callee.Content(src))
				if strings.HasSuffix(text, ".json") || strings.HasSuffix(text, ".send") ||
					strings.HasSuffix(text, "jsonify") || strings.HasSuffix(text, ".respond") {
					return true
				}
			}
		}
		cur = cur.Parent()
	}
	return false
}

// paramNames returns the identifier names of a function's formal parameters.
func paramNames(fn *sitter.Node, src []byte) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Type() {
		case "identifier":
			names = append(names, p.Content(src))
		case "required_parameter", "optional_parameter":
			// TypeScript wraps the identifier in a parameter node.
			if id := p.ChildByFieldName("pattern"); id != nil && id.Type() == "identifier" {
				names = append(names, id.Content(src))
			}
		}
	}
	return names
}

// DefaultCatalogue returns the fixed catalogue of recognized construct
// shapes, per category.
func DefaultCatalogue() []ConstructShape {
	return []ConstructShape{
		// --- authentication ---
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelLocalStorageToken,
			Strength:  0.9,
			NodeTypes: []string{"call_expression"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				if !containsAny(text, "localstorage.", "sessionstorage.") {
					return false
				}
				return mentionsToken(text)
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelCookieToken,
			Strength:  0.85,
			NodeTypes: []string{"member_expression", "call_expression"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				if containsAny(text, "req.cookies", "request.cookies", "cookies.get(", "document.cookie") {
					return mentionsToken(text)
				}
				// res.cookie('token', ...) sets a token-bearing cookie
				return containsAny(text, ".cookie(") && mentionsToken(text)
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelAuthHeader,
			Strength:  0.75,
			NodeTypes: []string{"member_expression", "call_expression", "subscript_expression", "subscript"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text,
					"headers.authorization",
					`headers["authorization"]`,
					`headers['authorization']`,
					`header("authorization")`,
					`header('authorization')`,
					`header.get("authorization")`,
					`headers.get("authorization")`,
					`headers.get('authorization')`,
				)
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelJWTVerify,
			Strength:  0.9,
			NodeTypes: []string{"call_expression", "call"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text, "jwt.verify(", "jwt.sign(", "jwt.decode(", "jsonwebtoken")
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelSessionMiddleware,
			Strength:  0.7,
			NodeTypes: []string{"call_expression"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				if !strings.HasPrefix(text, "app.use(") && !strings.HasPrefix(text, "router.use(") {
					return false
				}
				return containsAny(text, "session(", "cookiesession(")
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelSessionMiddleware,
			Strength:  0.6,
			NodeTypes: []string{"import_statement"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text, "express-session", "cookie-session")
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelSessionMiddleware,
			Strength:  0.7,
			NodeTypes: []string{"decorator"},
			Languages: []lang.Language{lang.LangPython},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text, "login_required", "permission_required")
			},
		},
		{
			Category:  evidence.CategoryAuthentication,
			Label:     evidence.LabelJWTVerify,
			Strength:  0.8,
			NodeTypes: []string{"decorator"},
			Languages: []lang.Language{lang.LangPython},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return strings.Contains(text, "jwt_required")
			},
		},

		// --- apiResponses ---
		{
			Category:  evidence.CategoryAPIResponses,
			Label:     evidence.LabelEnvelopeSuccessError,
			Strength:  0.8,
			NodeTypes: []string{"object", "dictionary"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				keys := objectKeys(node, src)
				if !hasKey(keys, "success") {
					return false
				}
				return hasKey(keys, "data") || hasKey(keys, "error") || hasKey(keys, "message")
			},
		},
		{
			Category:  evidence.CategoryAPIResponses,
			Label:     evidence.LabelDataWrapper,
			Strength:  0.6,
			NodeTypes: []string{"object", "dictionary"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				keys := objectKeys(node, src)
				if !hasKey(keys, "data") || hasKey(keys, "success") {
					return false
				}
				// Only objects in a response position count; a bare {data}
				// literal elsewhere proves nothing about response shaping.
				return hasEnclosingResponseCall(node, src)
			},
		},
		{
			Category:  evidence.CategoryAPIResponses,
			Label:     evidence.LabelStatusJSON,
			Strength:  0.7,
			NodeTypes: []string{"call_expression"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text, ".status(") && containsAny(text, ".json(")
			},
		},
		{
			Category:  evidence.CategoryAPIResponses,
			Label:     evidence.LabelBarePayload,
			Strength:  0.4,
			NodeTypes: []string{"call_expression"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				callee := node.ChildByFieldName("function")
				if callee == nil || callee.Type() != "member_expression" {
					return false
				}
				obj := callee.ChildByFieldName("object")
				prop := callee.ChildByFieldName("property")
				if obj == nil || prop == nil || obj.Type() != "identifier" {
					return false
				}
				objName := strings.ToLower(obj.Content(src))
				propName := prop.Content(src)
				if objName != "res" && objName != "response" {
					return false
				}
				if propName != "json" && propName != "send" {
					return false
				}
				args := node.ChildByFieldName("arguments")
				if args == nil || args.NamedChildCount() != 1 {
					return false
				}
				return args.NamedChild(0).Type() == "identifier"
			},
		},

		// --- errorHandling ---
		{
			Category:  evidence.CategoryErrorHandling,
			Label:     evidence.LabelCatchRethrow,
			Strength:  0.7,
			NodeTypes: []string{"catch_clause", "except_clause"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				return containsAny(text, "throw ", "throw;", "raise ", "raise\n") ||
					strings.HasSuffix(strings.TrimSpace(text), "raise")
			},
		},
		{
			Category:  evidence.CategoryErrorHandling,
			Label:     evidence.LabelCatchLog,
			Strength:  0.7,
			NodeTypes: []string{"catch_clause", "except_clause"},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				if containsAny(text, "throw ", "throw;", "raise ") {
					return false // rethrow shape claims this clause
				}
				return containsAny(text, "console.error", "console.log", "console.warn",
					"logger.", "log.error", "log.warn", "logging.")
			},
		},
		{
			Category:  evidence.CategoryErrorHandling,
			Label:     evidence.LabelErrorMiddleware,
			Strength:  0.85,
			NodeTypes: []string{"function_declaration", "function_expression", "arrow_function"},
			Languages: jsFamily,
			Match: func(node *sitter.Node, src []byte, text string) bool {
				names := paramNames(node, src)
				if len(names) != 4 {
					return false
				}
				first := strings.ToLower(names[0])
				return first == "err" || first == "error"
			},
		},
		{
			Category:  evidence.CategoryErrorHandling,
			Label:     evidence.LabelResultReturn,
			Strength:  0.5,
			NodeTypes: []string{"if_statement"},
			Languages: []lang.Language{lang.LangGo},
			Match: func(node *sitter.Node, src []byte, text string) bool {
				cond := node.ChildByFieldName("condition")
				if cond == nil {
					return false
				}
				return strings.Contains(cond.Content(src), "err != nil")
			},
		},
	}
}

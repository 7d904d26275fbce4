package workflow

import (
	"fmt"
	"strings"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Condition is the parsed AST for a `${{ ... }}` expression (§4.4,
// §9 design note): And/Or combine Cmp nodes left-to-right, `and`
// binding tighter than `or`.
type Condition struct {
	op    string // "and", "or", or "" for a leaf Cmp
	terms []*Condition
	cmp   *cmpNode
}

type cmpNode struct {
	refKind  string // "job_status" or "env"
	refName  string
	operator string // "==" or "!="
	literal  string
}

// ConditionContext supplies the runtime values a Condition evaluates
// against (§4.4).
type ConditionContext struct {
	JobStatus func(name string) string // lowercase status, "unknown" if absent
	Env       func(name string) string // "" if absent
}

// ParseCondition parses a full `${{ expr }}` string into a Condition,
// rejecting anything outside the whitelisted grammar at parse time
// (§9 design note: reject at validation time, not evaluation time).
func ParseCondition(raw string) (*Condition, error) {
	trimmed := strings.TrimSpace(raw)
	inner, ok := strings.CutPrefix(trimmed, "${{")
	if !ok {
		return nil, fmt.Errorf("%w: condition %q must start with ${{", orcaops.ErrValidation, raw)
	}
	inner, ok = strings.CutSuffix(inner, "}}")
	if !ok {
		return nil, fmt.Errorf("%w: condition %q must end with }}", orcaops.ErrValidation, raw)
	}

	p := &condParser{tokens: tokenize(inner)}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("%w: condition %q: %v", orcaops.ErrValidation, raw, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("%w: condition %q: unexpected trailing tokens", orcaops.ErrValidation, raw)
	}
	return expr, nil
}

// Eval evaluates c against ctx.
func (c *Condition) Eval(ctx ConditionContext) bool {
	if c.cmp != nil {
		var actual string
		switch c.cmp.refKind {
		case "job_status":
			actual = ctx.JobStatus(c.cmp.refName)
		case "env":
			actual = ctx.Env(c.cmp.refName)
		}
		switch c.cmp.operator {
		case "==":
			return actual == c.cmp.literal
		default: // "!="
			return actual != c.cmp.literal
		}
	}

	switch c.op {
	case "or":
		for _, t := range c.terms {
			if t.Eval(ctx) {
				return true
			}
		}
		return false
	default: // "and"
		for _, t := range c.terms {
			if !t.Eval(ctx) {
				return false
			}
		}
		return true
	}
}

// tokenize splits a condition's inner expression into whitespace- and
// operator-delimited tokens. Quoted literals are kept as a single
// token including their surrounding quotes.
func tokenize(s string) []string {
	var tokens []string
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t':
			i++
		case s[i] == '\'':
			j := i + 1
			for j < len(s) && s[j] != '\'' {
				j++
			}
			if j < len(s) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		case strings.HasPrefix(s[i:], "=="):
			tokens = append(tokens, "==")
			i += 2
		case strings.HasPrefix(s[i:], "!="):
			tokens = append(tokens, "!=")
			i += 2
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\'' &&
				!strings.HasPrefix(s[j:], "==") && !strings.HasPrefix(s[j:], "!=") {
				j++
			}
			if j == i {
				j++ // avoid an infinite loop on an unexpected byte
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens
}

type condParser struct {
	tokens []string
	pos    int
}

func (p *condParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *condParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

// parseExpr := cmp (('and'|'or') cmp)*, with `and` binding tighter than
// `or`: a sequence of `and`-groups joined by `or` (§4.4, §9 And(list) |
// Or(list) AST).
func (p *condParser) parseExpr() (*Condition, error) {
	first, err := p.parseAndGroup()
	if err != nil {
		return nil, err
	}

	groups := []*Condition{first}
	for p.peek() == "or" {
		p.next()
		next, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		groups = append(groups, next)
	}
	if len(groups) == 1 {
		return first, nil
	}
	return &Condition{op: "or", terms: groups}, nil
}

// parseAndGroup := cmp ('and' cmp)*
func (p *condParser) parseAndGroup() (*Condition, error) {
	first, err := p.parseCmp()
	if err != nil {
		return nil, err
	}

	terms := []*Condition{first}
	for p.peek() == "and" {
		p.next()
		next, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &Condition{op: "and", terms: terms}, nil
}

// parseCmp := ref ('=='|'!=') "'" literal "'"
func (p *condParser) parseCmp() (*Condition, error) {
	refTok := p.next()
	refKind, refName, err := parseRef(refTok)
	if err != nil {
		return nil, err
	}

	opTok := p.next()
	if opTok != "==" && opTok != "!=" {
		return nil, fmt.Errorf("expected '==' or '!=', got %q", opTok)
	}

	litTok := p.next()
	if len(litTok) < 2 || litTok[0] != '\'' || litTok[len(litTok)-1] != '\'' {
		return nil, fmt.Errorf("expected a quoted literal, got %q", litTok)
	}
	literal := litTok[1 : len(litTok)-1]

	return &Condition{cmp: &cmpNode{refKind: refKind, refName: refName, operator: opTok, literal: literal}}, nil
}

// parseRef recognizes 'jobs.' name '.status' or 'env.' name.
func parseRef(tok string) (kind, name string, err error) {
	if rest, ok := strings.CutPrefix(tok, "jobs."); ok {
		name, ok = strings.CutSuffix(rest, ".status")
		if !ok || name == "" {
			return "", "", fmt.Errorf("malformed job status ref %q", tok)
		}
		return "job_status", name, nil
	}
	if rest, ok := strings.CutPrefix(tok, "env."); ok {
		if rest == "" {
			return "", "", fmt.Errorf("malformed env ref %q", tok)
		}
		return "env", rest, nil
	}
	return "", "", fmt.Errorf("unrecognized reference %q", tok)
}

// Package secrets detects and redacts credentials in stage input before it
// reaches stages, session history or published events.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Redaction replaces every detected secret.
const Redaction = "[REDACTED]"

// Rule matches one kind of credential. Keywords, when set, gate the rule:
// at least one must appear (case-insensitively) in the content.
type Rule struct {
	ID       string
	Pattern  string
	Keywords []string
	Severity string
}

// Finding locates a detected secret without carrying its value.
type Finding struct {
	RuleID     string `json:"rule_id"`
	Severity   string `json:"severity"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// Result is the outcome of a Scrub.
type Result struct {
	Scrubbed string         `json:"-"`
	Findings []Finding      `json:"findings,omitempty"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
}

// HasFindings reports whether any secret was found.
func (r Result) HasFindings() bool { return len(r.Findings) > 0 }

// RuleIDs returns the matched rule IDs, sorted.
func (r Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []string
}

// Scrubber is safe for concurrent use.
type Scrubber struct {
	rules []compiledRule

	// leaks, when set, runs the gitleaks default rule set next to rules.
	// Calls into the detector are serialized.
	leaksMu sync.Mutex
	leaks   *detect.Detector
}

// New compiles rules into a Scrubber.
func New(rules ...Rule) (*Scrubber, error) {
	s := &Scrubber{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, pattern: re, keywords: kws})
	}
	return s, nil
}

// Default returns a Scrubber with DefaultRules.
func Default() *Scrubber {
	s, err := New(DefaultRules()...)
	if err != nil {
		panic(fmt.Sprintf("secrets: default rules: %v", err))
	}
	return s
}

// Scrub finds secrets in content and returns it with each match replaced by
// Redaction. Overlapping matches are merged into one redaction.
func (s *Scrubber) Scrub(content string) Result {
	res := Result{Scrubbed: content}
	if s == nil || content == "" {
		return res
	}

	lower := strings.ToLower(content)
	var spans [][2]int
	add := func(ruleID, severity string, start, end int) {
		if res.ByRule == nil {
			res.ByRule = make(map[string]int)
		}
		res.Findings = append(res.Findings, Finding{
			RuleID:     ruleID,
			Severity:   severity,
			StartIndex: start,
			EndIndex:   end,
		})
		res.ByRule[ruleID]++
		spans = append(spans, [2]int{start, end})
	}
	for _, r := range s.rules {
		if !r.keywordPresent(lower) {
			continue
		}
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			add(r.ID, r.Severity, m[0], m[1])
		}
	}
	for _, f := range s.detectLeaks(content) {
		add(f.RuleID, f.Severity, f.StartIndex, f.EndIndex)
	}
	if len(spans) == 0 {
		return res
	}

	var b strings.Builder
	last := 0
	for _, sp := range merge(spans) {
		b.WriteString(content[last:sp[0]])
		b.WriteString(Redaction)
		last = sp[1]
	}
	b.WriteString(content[last:])
	res.Scrubbed = b.String()
	return res
}

func (r compiledRule) keywordPresent(lower string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or touching ones.
func merge(spans [][2]int) [][2]int {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	out := spans[:1]
	for _, sp := range spans[1:] {
		tail := &out[len(out)-1]
		if sp[0] <= tail[1] {
			tail[1] = max(tail[1], sp[1])
			continue
		}
		out = append(out, sp)
	}
	return out
}

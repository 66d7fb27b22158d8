package secrets

import (
	"fmt"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// gitleaksSeverity is assigned to every gitleaks finding; its rule set
// carries no severity of its own.
const gitleaksSeverity = "high"

// WithGitleaks returns a Scrubber that runs the gitleaks default rule set
// in addition to rules.
func WithGitleaks(rules ...Rule) (*Scrubber, error) {
	s, err := New(rules...)
	if err != nil {
		return nil, err
	}
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("gitleaks detector: %w", err)
	}
	s.leaks = d
	return s, nil
}

// detectLeaks maps gitleaks findings back to byte spans of content. The
// detector reports line/column positions, so every occurrence of the
// reported secret is located directly instead.
func (s *Scrubber) detectLeaks(content string) []Finding {
	if s.leaks == nil {
		return nil
	}
	s.leaksMu.Lock()
	found := s.leaks.DetectString(content)
	s.leaksMu.Unlock()

	var out []Finding
	seen := make(map[string]bool)
	for _, f := range found {
		if f.Secret == "" || seen[f.RuleID+"\x00"+f.Secret] {
			continue
		}
		seen[f.RuleID+"\x00"+f.Secret] = true
		for from := 0; ; {
			i := strings.Index(content[from:], f.Secret)
			if i < 0 {
				break
			}
			start := from + i
			out = append(out, Finding{
				RuleID:     f.RuleID,
				Severity:   gitleaksSeverity,
				StartIndex: start,
				EndIndex:   start + len(f.Secret),
			})
			from = start + len(f.Secret)
		}
	}
	return out
}

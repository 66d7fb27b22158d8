package secrets

// DefaultRules covers the credential formats most likely to be pasted into
// free-text input.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "aws-access-key-id",
			Pattern:  `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`,
			Severity: "high",
		},
		{
			ID:       "private-key",
			Pattern:  `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY( BLOCK)?-----[\s\S]*?-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY( BLOCK)?-----`,
			Keywords: []string{"private key"},
			Severity: "high",
		},
		{
			ID:       "github-token",
			Pattern:  `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b|\bgithub_pat_[A-Za-z0-9_]{82}\b`,
			Severity: "high",
		},
		{
			ID:       "slack-token",
			Pattern:  `\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`,
			Severity: "high",
		},
		{
			ID:       "stripe-key",
			Pattern:  `\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{24,99}\b`,
			Severity: "high",
		},
		{
			ID:       "llm-api-key",
			Pattern:  `\bsk-(?:ant-[A-Za-z0-9_-]{32,}|proj-[A-Za-z0-9_-]{32,}|[A-Za-z0-9]{48})\b`,
			Severity: "high",
		},
		{
			ID:       "jwt",
			Pattern:  `\beyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`,
			Severity: "medium",
		},
		{
			ID:       "connection-string",
			Pattern:  `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp|nats)://[^:\s/]+:[^@\s]+@[^\s]+`,
			Keywords: []string{"://"},
			Severity: "high",
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)\bbearer\s+[A-Za-z0-9._~+/-]{20,}=*`,
			Keywords: []string{"bearer"},
			Severity: "medium",
		},
		{
			ID:       "assigned-secret",
			Pattern:  `(?i)\b(?:password|passwd|secret|api[_-]?key|token)\s*[:=]\s*['"]?[^\s'"]{8,}`,
			Keywords: []string{"password", "passwd", "secret", "api_key", "api-key", "apikey", "token"},
			Severity: "medium",
		},
	}
}

package supervisor

import "strings"

// CriticalClassifier detects unrecoverable infrastructure failures by
// scanning error messages for fatal substrings. The signal from search and
// generative providers is plain error text, so classification is a substring
// match rather than an error-type hierarchy.
type CriticalClassifier struct {
	patterns []string
}

// NewCriticalClassifier creates a classifier for the given fatal substrings.
// Patterns are matched case-insensitively.
func NewCriticalClassifier(patterns []string) *CriticalClassifier {
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &CriticalClassifier{patterns: lowered}
}

// Match scans the error log and returns the first message containing a
// critical pattern, if any.
func (c *CriticalClassifier) Match(errs []string) (string, bool) {
	for _, msg := range errs {
		lower := strings.ToLower(msg)
		for _, pattern := range c.patterns {
			if strings.Contains(lower, pattern) {
				return msg, true
			}
		}
	}
	return "", false
}

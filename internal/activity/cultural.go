package activity

import (
	"regexp"
	"strings"

	"github.com/hylla/manas/internal/domain"
)

// rewrite is one surface-text substitution.
type rewrite struct {
	pattern *regexp.Regexp
	replace string
	once    bool
}

// CulturalAdapter rewrites step text from configuration tags.
type CulturalAdapter struct {
	greetings []rewrite
	family    []rewrite
	glosses   []rewrite
	practices []rewrite
}

// NewCulturalAdapter builds the adapter with the built-in phrase tables.
func NewCulturalAdapter() *CulturalAdapter {
	return &CulturalAdapter{
		greetings: []rewrite{
			{pattern: regexp.MustCompile(`(?i)^(hello|hi|hey)\b`), replace: "Namaste"},
			{pattern: regexp.MustCompile(`(?i)\bwelcome\b`), replace: "Swagat hai, $0", once: true},
		},
		family: []rewrite{
			{pattern: regexp.MustCompile(`(?i)\byour loved ones\b`), replace: "your family and loved ones"},
			{pattern: regexp.MustCompile(`(?i)\bpeople close to you\b`), replace: "your family and people close to you"},
			{pattern: regexp.MustCompile(`(?i)\bsomeone you trust\b`), replace: "a family elder or someone you trust"},
		},
		glosses: []rewrite{
			{pattern: regexp.MustCompile(`(?i)\bbreathe\b`), replace: "$0 (saans lijiye)", once: true},
			{pattern: regexp.MustCompile(`(?i)\brelax\b`), replace: "$0 (aaram se)", once: true},
			{pattern: regexp.MustCompile(`(?i)\bpeace\b`), replace: "$0 (shanti)", once: true},
			{pattern: regexp.MustCompile(`(?i)\bgratitude\b`), replace: "$0 (aabhar)", once: true},
			{pattern: regexp.MustCompile(`(?i)\bthoughts\b`), replace: "$0 (vichaar)", once: true},
		},
		practices: []rewrite{
			{pattern: regexp.MustCompile(`(?i)\bbreathing exercise\b`), replace: "$0, much like pranayama", once: true},
			{pattern: regexp.MustCompile(`(?i)\bstay present\b`), replace: "$0, as in dhyana", once: true},
		},
	}
}

// Adapt rewrites text according to the configuration's cultural tags.
func (c *CulturalAdapter) Adapt(text string, cfg domain.ActivityConfiguration) string {
	if c == nil || strings.TrimSpace(text) == "" {
		return text
	}
	if cfg.HasCulturalTag(domain.TagIndianContext) || cfg.HasCulturalTag(domain.TagHindi) {
		text = apply(text, c.greetings)
	}
	if cfg.HasCulturalTag(domain.TagFamilyOriented) {
		text = apply(text, c.family)
	}
	if cfg.HasCulturalTag(domain.TagTraditionalPractices) {
		text = apply(text, c.practices)
	}
	if cfg.HasCulturalTag(domain.TagBilingual) || cfg.HasCulturalTag(domain.TagHindi) {
		text = apply(text, c.glosses)
	}
	return text
}

// apply runs every rewrite over text in order.
func apply(text string, rules []rewrite) string {
	for _, rule := range rules {
		if !rule.once {
			text = rule.pattern.ReplaceAllString(text, rule.replace)
			continue
		}
		loc := rule.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		text = text[:loc[0]] + rule.pattern.ReplaceAllString(text[loc[0]:loc[1]], rule.replace) + text[loc[1]:]
	}
	return text
}

package app

import (
	"regexp"
	"strings"
)

// crisisPhrases are English and Hinglish expressions that indicate acute risk.
var crisisPhrases = []string{
	"kill myself",
	"killing myself",
	"end my life",
	"end it all",
	"want to die",
	"wanna die",
	"suicide",
	"suicidal",
	"hurt myself",
	"harm myself",
	"self harm",
	"no reason to live",
	"better off dead",
	"can't go on",
	"cannot go on",
	"marna chahta",
	"marna chahti",
	"mar jaana",
	"mar jana",
	"jeena nahi",
	"jeene ka mann nahi",
	"khud ko khatam",
	"zindagi khatam",
	"aatmahatya",
}

// crisisPattern matches any crisis phrase on word boundaries.
var crisisPattern = func() *regexp.Regexp {
	quoted := make([]string, 0, len(crisisPhrases))
	for _, phrase := range crisisPhrases {
		quoted = append(quoted, regexp.QuoteMeta(phrase))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}()

// detectCrisis returns the first crisis phrase found in input.
func detectCrisis(input string) (string, bool) {
	text := strings.ToLower(input)
	text = strings.NewReplacer("’", "'", "-", " ").Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	match := crisisPattern.FindString(text)
	return match, match != ""
}

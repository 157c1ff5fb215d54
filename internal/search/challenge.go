package search

import (
	"strings"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// challengePhrases are scanned case-insensitively against the rendered
// markup. The list is deliberately fixed; providers rotate wording slowly.
var challengePhrases = []string{
	"prove you're not a robot",
	"prove your humanity",
	"unusual traffic",
	"automated requests",
	"hcaptcha",
	"recaptcha",
	"blocked",
}

// classifyPage flags a rendered page as a challenge interstitial or as too
// small to be a real results page. minBytes <= 0 disables the size rule.
// Challenge phrases win over every other signal, including extractable
// results.
func classifyPage(html string, minBytes int) crawler.FailureReason {
	lower := strings.ToLower(html)
	for _, phrase := range challengePhrases {
		if strings.Contains(lower, phrase) {
			return crawler.FailureChallengeDetected
		}
	}
	if minBytes > 0 && len(html) < minBytes {
		return crawler.FailurePageTooSmall
	}
	return crawler.FailureNone
}

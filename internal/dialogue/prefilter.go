package dialogue

import (
	"fmt"
	"sort"
	"strings"

	"call-assistant/internal/tenants"
)

// Prefilter may answer a caller utterance without calling the generator.
type Prefilter interface {
	Answer(p tenants.Profile, utterance string) (string, bool)
}

// KeywordPrefilter answers hours, address and insurance questions from the
// tenant profile. A question about a fact the profile lacks is left to the
// generator.
type KeywordPrefilter struct{}

func (KeywordPrefilter) Answer(p tenants.Profile, utterance string) (string, bool) {
	s := strings.ToLower(utterance)

	switch {
	case strings.Contains(s, "hours"):
		if strings.TrimSpace(p.Hours) == "" {
			return "", false
		}
		return fmt.Sprintf("Our office hours are %s.", strings.TrimSpace(p.Hours)), true

	case strings.Contains(s, "address") || strings.Contains(s, "location") || strings.Contains(s, "located"):
		if strings.TrimSpace(p.Address) == "" {
			return "", false
		}
		return fmt.Sprintf("We are located at %s.", strings.TrimSpace(p.Address)), true

	case strings.Contains(s, "insurance"):
		if len(p.AcceptedPayments) == 0 {
			return "", false
		}
		plans := append([]string(nil), p.AcceptedPayments...)
		sort.Strings(plans)
		return fmt.Sprintf("We accept %s.", strings.Join(plans, ", ")), true
	}
	return "", false
}

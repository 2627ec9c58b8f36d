package identity

import (
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/wslogin/google-auth/internal/google/settings"
)

// ResolveRoles returns the union of the roles of every pattern whose regex
// matches the whole email, in first seen order.
// Patterns with an invalid regex never match.
func ResolveRoles(patterns []settings.EmailPattern, email string) ([]string, error) {
	var (
		roles []string
		seen  = map[string]bool{}
	)

	for i, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p.Regex + `)$`)
		if err != nil {
			log.Warn().Err(err).Int("pattern", i+1).Msg("skipping email pattern with invalid regex")
			continue
		}

		if !re.MatchString(email) {
			continue
		}

		for _, r := range p.Roles {
			if r == "" || seen[r] {
				continue
			}

			seen[r] = true
			roles = append(roles, r)
		}
	}

	if len(roles) == 0 {
		return nil, ErrAccessDenied
	}

	return roles, nil
}

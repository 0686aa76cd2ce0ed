package config

import (
	"fmt"

	"github.com/project-kessel/edgeid/internal/httpfixture"
)

// FixtureTypeHTTPRule is the only supported fixture type
const FixtureTypeHTTPRule = "http_rule"

// BuildHTTPFixtureProvider creates a rule-based HTTP fixture provider from fixture configurations.
// Returns nil if no fixtures are configured (normal production mode).
func BuildHTTPFixtureProvider(fixtures []FixtureConfig) (httpfixture.FixtureProvider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	rules := make([]httpfixture.HTTPFixtureRule, 0, len(fixtures))
	for i, f := range fixtures {
		if f.Type != FixtureTypeHTTPRule {
			return nil, fmt.Errorf("fixture %d: unknown type %q (supported: %s)", i, f.Type, FixtureTypeHTTPRule)
		}
		if f.Request.URL == "" {
			return nil, fmt.Errorf("fixture %d: request url is required", i)
		}

		response := f.Response
		if response.StatusCode == 0 {
			response.StatusCode = 200
		}
		rules = append(rules, httpfixture.HTTPFixtureRule{
			Request:  f.Request,
			Response: response,
		})
	}

	return httpfixture.NewRuleBasedProvider(rules), nil
}

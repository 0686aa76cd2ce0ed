// Package httpfixture serves canned HTTP responses through an
// http.RoundTripper so outbound calls (auth document fetches, role lookups)
// can run without a network.
package httpfixture

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Fixture is a canned HTTP response.
type Fixture struct {
	StatusCode int               `json:"status_code" koanf:"status_code"`
	Headers    map[string]string `json:"headers,omitempty" koanf:"headers"`
	Body       string            `json:"body" koanf:"body"`

	// Delay is applied before the response is returned.
	Delay *time.Duration `json:"delay,omitempty" koanf:"delay"`
}

// FixtureProvider returns the fixture for a request, or nil when it has none.
type FixtureProvider interface {
	GetFixture(req *http.Request) *Fixture
}

// FixtureRequest describes which requests a rule matches.
type FixtureRequest struct {
	// Method matches the request method. "*" or "" matches any method.
	Method string `json:"method" koanf:"method"`

	// URL is compared against the full request URL.
	URL string `json:"url" koanf:"url"`

	// URLType is "exact" (default) or "pattern" (anchored regular expression).
	URLType string `json:"url_type,omitempty" koanf:"url_type"`

	// Headers must all be present with exactly these values.
	Headers map[string]string `json:"headers,omitempty" koanf:"headers"`
}

// HTTPFixtureRule pairs a request matcher with its response.
type HTTPFixtureRule struct {
	Request  FixtureRequest `json:"request" koanf:"request"`
	Response Fixture        `json:"response" koanf:"response"`
}

type compiledRule struct {
	rule    HTTPFixtureRule
	pattern *regexp.Regexp
}

// RuleBasedProvider returns the response of the first matching rule.
type RuleBasedProvider struct {
	rules []compiledRule
}

// NewRuleBasedProvider creates a provider from rules, evaluated in order.
// Rules whose pattern does not compile never match.
func NewRuleBasedProvider(rules []HTTPFixtureRule) *RuleBasedProvider {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{rule: rule}
		if rule.Request.URLType == "pattern" {
			re, err := regexp.Compile("^" + rule.Request.URL + "$")
			if err != nil {
				continue
			}
			cr.pattern = re
		}
		compiled = append(compiled, cr)
	}
	return &RuleBasedProvider{rules: compiled}
}

// GetFixture implements FixtureProvider
func (p *RuleBasedProvider) GetFixture(req *http.Request) *Fixture {
	for i := range p.rules {
		if p.rules[i].matches(req) {
			fixture := p.rules[i].rule.Response
			return &fixture
		}
	}
	return nil
}

func (r *compiledRule) matches(req *http.Request) bool {
	method := r.rule.Request.Method
	if method != "" && method != "*" && !strings.EqualFold(method, req.Method) {
		return false
	}

	url := req.URL.String()
	if r.pattern != nil {
		if !r.pattern.MatchString(url) {
			return false
		}
	} else if url != r.rule.Request.URL {
		return false
	}

	for name, value := range r.rule.Request.Headers {
		if req.Header.Get(name) != value {
			return false
		}
	}
	return true
}

// MapProvider looks fixtures up by "METHOD URL".
type MapProvider struct {
	fixtures map[string]*Fixture
}

// NewMapProvider creates a provider keyed by "METHOD URL".
func NewMapProvider(fixtures map[string]*Fixture) *MapProvider {
	return &MapProvider{fixtures: fixtures}
}

// GetFixture implements FixtureProvider
func (p *MapProvider) GetFixture(req *http.Request) *Fixture {
	return p.fixtures[req.Method+" "+req.URL.String()]
}

// FuncProvider adapts a function to FixtureProvider.
type FuncProvider struct {
	fn func(req *http.Request) *Fixture
}

// NewFuncProvider creates a provider backed by fn.
func NewFuncProvider(fn func(req *http.Request) *Fixture) *FuncProvider {
	return &FuncProvider{fn: fn}
}

// GetFixture implements FixtureProvider
func (p *FuncProvider) GetFixture(req *http.Request) *Fixture {
	return p.fn(req)
}

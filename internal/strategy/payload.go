package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// segmentParser pads segments to a multiple of four before decoding.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodePayload returns the claim set of a JWT without verifying it.
//
// Only the payload segment is read. The header and signature are ignored:
// the token was verified by the upstream proxy, and a token this process
// cannot verify must still resolve.
func DecodePayload(token string) (jwt.MapClaims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: token has %d segments", ErrDecode, len(parts))
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload segment: %v", ErrDecode, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload jwt.MapClaims
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: payload json: %v", ErrDecode, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrDecode)
	}

	return payload, nil
}

// extractionRules parameterizes how a decoded token payload becomes raw
// claims. The user and application bearer strategies share DecodePayload and
// differ only in their rules.
type extractionRules struct {
	// nameKeys are payload keys tried in order for the name claim.
	nameKeys []string

	// allClaims copies every payload claim. Otherwise only the top-level
	// roles array is taken.
	allClaims bool
}

// extract returns the raw claims and the provider name for payload.
func (rules extractionRules) extract(payload jwt.MapClaims, opts identity.ProviderOptions) ([]claims.Claim, string, error) {
	name, ok := firstString(payload, rules.nameKeys...)
	if !ok {
		return nil, "", fmt.Errorf("%w: token has none of %s", ErrMissingSubjectClaim, strings.Join(rules.nameKeys, ", "))
	}

	provider, ok := firstString(payload, "idp", "iss")
	if !ok {
		return nil, "", fmt.Errorf("%w: token has neither idp nor iss", ErrMissingIssuerClaim)
	}

	var raw []claims.Claim
	if rules.allClaims {
		raw = flatten(payload)
	} else {
		raw = valueClaims(claims.TypeRoles, payload[claims.TypeRoles])
	}

	nameType := opts.NameType()
	if !claims.Claims(raw).Has(nameType) {
		raw = append(raw, claims.New(nameType, name))
	}

	return raw, provider, nil
}

// flatten turns a payload into raw claims, one per scalar value, ordered by
// key. Arrays yield one claim per element.
func flatten(payload map[string]any) []claims.Claim {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]claims.Claim, 0, len(keys))
	for _, k := range keys {
		out = append(out, valueClaims(k, payload[k])...)
	}
	return out
}

func valueClaims(typ string, v any) []claims.Claim {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]claims.Claim, 0, len(val))
		for _, elem := range val {
			if s, ok := scalarString(elem); ok {
				out = append(out, claims.New(typ, s))
			}
		}
		return out
	default:
		if s, ok := scalarString(val); ok {
			return []claims.Claim{claims.New(typ, s)}
		}
		return nil
	}
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// firstString returns the first non-empty value among keys.
func firstString(payload map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalarString(payload[k]); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Package participants validates signer sets against the rules of the
// document's signing flow before anything is submitted to the remote
// service. Validation failures never reach the wire.
package participants

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
)

// ValidationError reports participant or document data that violates the
// rules of the selected signing flow. Recoverable: the caller corrects the
// input and retries.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "participants: " + e.Reason
}

func invalidf(format string, v ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, v...)}
}

// phoneRE accepts E.164: a leading plus, then 8-15 digits.
var phoneRE = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// flowRule describes the identity fields a signing flow requires. The rules
// are table-driven so the three flows stay exhaustively checkable in one place.
type flowRule struct {
	requireEmail bool
	requirePhone bool
}

var flowRules = map[document.SigningFlow]flowRule{
	document.FlowStandard:       {requireEmail: true},
	document.FlowEmbeddedSMS:    {requirePhone: true},
	document.FlowSimplifiedAuth: {},
}

// Validate checks the participant set for the given flow:
// every entry needs a name, order indices must form a dense unique 1..N
// sequence, and flow-dependent identity fields must be present and well
// formed. Phone numbers must already be in normalized international format
// (see NormalizePhone).
func Validate(flow document.SigningFlow, ps []document.Participant) error {
	rule, ok := flowRules[flow]
	if !ok {
		return invalidf("unknown signing flow %q", flow)
	}
	if len(ps) == 0 {
		return invalidf("at least one participant is required")
	}

	seen := make(map[int]bool, len(ps))
	for i, p := range ps {
		if strings.TrimSpace(p.Name) == "" {
			return invalidf("participant %d: name is required", i+1)
		}
		if p.Order < 1 || p.Order > len(ps) {
			return invalidf("participant %q: order %d outside 1..%d", p.Name, p.Order, len(ps))
		}
		if seen[p.Order] {
			return invalidf("duplicate order index %d", p.Order)
		}
		seen[p.Order] = true

		if rule.requireEmail && strings.TrimSpace(p.Email) == "" {
			return invalidf("participant %q: email is required for the standard flow", p.Name)
		}
		if rule.requirePhone {
			if p.PhoneNumber == "" {
				return invalidf("participant %q: phone number is required for the embedded-SMS flow", p.Name)
			}
			if !phoneRE.MatchString(p.PhoneNumber) {
				return invalidf("participant %q: phone number %q is not in international format", p.Name, p.PhoneNumber)
			}
		}
	}
	// seen holds len(ps) distinct values in 1..len(ps), so the sequence is dense
	return nil
}

// NormalizePhone converts common Japanese local notation to E.164
// (+81...) and strips separators. Returns the input unchanged when it is
// already international.
func NormalizePhone(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if strings.HasPrefix(s, "+") {
		return s
	}
	if strings.HasPrefix(s, "0") {
		return "+81" + s[1:]
	}
	return s
}

// Sorted returns the participants ordered by their order index, without
// mutating the input. Submission order matters to the remote side.
func Sorted(ps []document.Participant) []document.Participant {
	out := make([]document.Participant, len(ps))
	copy(out, ps)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

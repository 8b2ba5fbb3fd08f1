// Package trust decides which side of the cookie boundary a caller lives on.
package trust

import (
	"net/url"
	"strings"
)

// Party is the trust classification of a request origin.
type Party int

const (
	// ThirdParty is the zero value: any origin that cannot be positively
	// matched against the internal root host stays on the non-cookie path.
	ThirdParty Party = iota
	FirstParty
)

func (p Party) String() string {
	if p == FirstParty {
		return "first-party"
	}
	return "third-party"
}

// Classifier classifies request origins against a configured root host.
type Classifier struct {
	rootHost string
}

// NewClassifier creates a Classifier for the given internal root host,
// e.g. "internal.example".
func NewClassifier(rootHost string) *Classifier {
	return &Classifier{rootHost: strings.ToLower(strings.TrimSpace(rootHost))}
}

// Classify parses the Origin header value and returns FirstParty iff its
// hostname equals the root host or is a subdomain of it. Empty or malformed
// origins classify as ThirdParty: classification fails closed toward the
// lower-trust path, never toward cookies.
func (c *Classifier) Classify(origin string) Party {
	if origin == "" || c.rootHost == "" {
		return ThirdParty
	}

	u, err := url.Parse(origin)
	if err != nil {
		return ThirdParty
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ThirdParty
	}

	if host == c.rootHost || strings.HasSuffix(host, "."+c.rootHost) {
		return FirstParty
	}
	return ThirdParty
}

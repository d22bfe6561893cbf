package zedupdate

import (
	"net/url"
	"strings"
)

// canUseTokenForDomain tells whether a token for the origin registry can be sent to other:
// the host must be the same or one of its subdomains.
func canUseTokenForDomain(origin, other string) (bool, error) {
	originURL, err := url.Parse(origin)
	if err != nil {
		return false, err
	}
	otherURL, err := url.Parse(other)
	if err != nil {
		return false, err
	}
	originHost := strings.ToLower(originURL.Hostname())
	otherHost := strings.ToLower(otherURL.Hostname())
	if originHost == "" {
		return false, nil
	}
	return otherHost == originHost || strings.HasSuffix(otherHost, "."+originHost), nil
}

package openrouter

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

// Hosts the adapter will talk to unless the caller allows others.
var defaultEndpointHosts = []string{"openrouter.ai", "api.openrouter.ai"}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateEndpoint checks that the oracle base URL is a clean absolute https
// URL whose host is trusted. Judgment requests carry the API key, so an
// attacker-controlled base URL would leak it; an empty allow list trusts only
// the stock OpenRouter hosts.
func ValidateEndpoint(baseURL string, allowedHosts []string) error {
	u, err := url.Parse(normalizeBaseURL(baseURL))
	if err != nil {
		return fmt.Errorf("oracle base URL: %w", err)
	}
	switch {
	case !u.IsAbs() || u.Hostname() == "":
		return fmt.Errorf("oracle base URL %q: need an absolute URL with a host", baseURL)
	case !strings.EqualFold(u.Scheme, "https"):
		return fmt.Errorf("oracle base URL %q: only https endpoints are accepted", baseURL)
	case u.User != nil:
		return fmt.Errorf("oracle base URL %q: credentials in the URL are not accepted", baseURL)
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("oracle base URL %q: query and fragment are not accepted", baseURL)
	}
	host := strings.ToLower(u.Hostname())
	if !trustedHost(host, allowedHosts) {
		return fmt.Errorf("oracle base URL %q: host %q is not on the allow list", baseURL, host)
	}
	return nil
}

func trustedHost(host string, extra []string) bool {
	allowed := defaultEndpointHosts
	if cleaned := cleanHosts(extra); len(cleaned) > 0 {
		allowed = cleaned
	}
	for _, h := range allowed {
		if host == h {
			return true
		}
	}
	return false
}

// cleanHosts accepts bare hostnames, full URLs, and host:port forms.
func cleanHosts(hosts []string) []string {
	var out []string
	for _, h := range hosts {
		v := strings.ToLower(strings.TrimSpace(h))
		v = strings.TrimPrefix(v, "https://")
		v = strings.TrimPrefix(v, "http://")
		v = strings.Trim(v, "/")
		if i := strings.IndexByte(v, ':'); i >= 0 {
			v = v[:i]
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

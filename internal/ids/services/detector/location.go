package detector

import (
	"net/url"
	"strings"

	"github.com/haukened/rr-ids/internal/ids/common/utils"
)

// target reduces a Location header or request URI to "host/path?query" so a
// redirect and the request that follows it compare equal. Relative references
// are resolved against baseURI and host.
func target(ref, host, baseURI string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return utils.CanonicalHost(host) + ref
	}
	if base, err := url.Parse(baseURI); err == nil {
		u = base.ResolveReference(u)
	}
	h := u.Host
	if h == "" {
		h = host
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return utils.CanonicalHost(h) + p
}

package domain

import "fmt"

// RedirectType is the HTTP status code of a redirect response.
type RedirectType uint16

const (
	RedirectMovedPermanently RedirectType = 301
	RedirectFound            RedirectType = 302
	RedirectSeeOther         RedirectType = 303
	RedirectTemporary        RedirectType = 307
	RedirectPermanent        RedirectType = 308
)

// NewRedirectType validates an HTTP status code as a redirect type.
func NewRedirectType(status int) (RedirectType, error) {
	rt := RedirectType(status)
	if status < 0 || status > 0xffff || !rt.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRedirectType, status)
	}
	return rt, nil
}

// Valid reports whether the type is one of the tracked redirect codes.
func (t RedirectType) Valid() bool {
	switch t {
	case RedirectMovedPermanently, RedirectFound, RedirectSeeOther, RedirectTemporary, RedirectPermanent:
		return true
	}
	return false
}

func (t RedirectType) String() string {
	return fmt.Sprintf("%d", uint16(t))
}

// Redirect is one pending (not yet followed) redirect for a source.
type Redirect struct {
	Source      Key
	Location    string
	Destination []byte
	Type        RedirectType
	// Count is the number of requests the source made since the redirect without following it.
	Count int
}

package domain

import (
	"encoding/hex"
	"fmt"
	"net/netip"
)

// Key identifies the tracked entity, usually a source address.
// It is an immutable byte string so it can be used directly as a map key.
type Key string

// KeyFromAddr encodes an address as a fixed-width key: 4 bytes for IPv4
// (including IPv4-mapped IPv6), 16 bytes otherwise.
func KeyFromAddr(addr netip.Addr) Key {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return Key(b[:])
	}
	b := addr.As16()
	return Key(b[:])
}

// KeyFromBytes copies raw bytes into a Key.
func KeyFromBytes(b []byte) Key {
	return Key(b)
}

// ParseKey parses a textual address into a Key.
func ParseKey(s string) (Key, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", fmt.Errorf("parse key %q: %w", s, err)
	}
	return KeyFromAddr(addr), nil
}

// Bytes returns a copy of the key bytes.
func (k Key) Bytes() []byte {
	return []byte(k)
}

// Addr returns the address encoded by the key, if it is 4 or 16 bytes wide.
func (k Key) Addr() (netip.Addr, bool) {
	switch len(k) {
	case 4, 16:
		return netip.AddrFromSlice([]byte(k))
	default:
		return netip.Addr{}, false
	}
}

// String renders address keys in dotted/colon form and anything else as hex.
func (k Key) String() string {
	if addr, ok := k.Addr(); ok {
		return addr.String()
	}
	return hex.EncodeToString([]byte(k))
}

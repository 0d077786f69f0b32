// Package globalvar is the fixed pool of integer and string variables shared
// by detection scripts.
package globalvar

import (
	"fmt"
	"sync"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

// Slots is the number of integer and of string variables in a Pool.
const Slots = 15

// Pool is safe for concurrent use. The zero value is ready to use.
type Pool struct {
	mu   sync.RWMutex
	ints [Slots]int64
	strs [Slots]string
	set  [Slots]bool
}

// New returns an empty Pool.
func New() *Pool { return &Pool{} }

func check(i int) error {
	if i < 0 || i >= Slots {
		return fmt.Errorf("%w: %d (have %d)", domain.ErrSlotOutOfRange, i, Slots)
	}
	return nil
}

// Int returns integer slot i.
func (p *Pool) Int(i int) (int64, error) {
	if err := check(i); err != nil {
		return 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ints[i], nil
}

// SetInt stores v in integer slot i.
func (p *Pool) SetInt(i int, v int64) error {
	if err := check(i); err != nil {
		return err
	}
	p.mu.Lock()
	p.ints[i] = v
	p.mu.Unlock()
	return nil
}

// Str returns string slot i and whether it has been set.
func (p *Pool) Str(i int) (string, bool, error) {
	if err := check(i); err != nil {
		return "", false, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strs[i], p.set[i], nil
}

// SetStr stores v in string slot i. Values may contain any bytes, including NUL.
func (p *Pool) SetStr(i int, v string) error {
	if err := check(i); err != nil {
		return err
	}
	p.mu.Lock()
	p.strs[i] = v
	p.set[i] = true
	p.mu.Unlock()
	return nil
}

// ClearStr unsets string slot i.
func (p *Pool) ClearStr(i int) error {
	if err := check(i); err != nil {
		return err
	}
	p.mu.Lock()
	p.strs[i] = ""
	p.set[i] = false
	p.mu.Unlock()
	return nil
}

// Reset zeroes every slot.
func (p *Pool) Reset() {
	p.mu.Lock()
	p.ints = [Slots]int64{}
	p.strs = [Slots]string{}
	p.set = [Slots]bool{}
	p.mu.Unlock()
}

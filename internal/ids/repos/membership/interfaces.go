package membership

import "github.com/haukened/rr-ids/internal/ids/domain"

// Observer receives lifecycle notifications from a Table.
// Implemented by the stats package; a nil Observer is replaced with a no-op.
type Observer interface {
	RecordCreated()
	RecordDeleted()
	RecordEvicted()
	FilterRefreshed(name domain.FilterName)
}

type nopObserver struct{}

func (nopObserver) RecordCreated()                    {}
func (nopObserver) RecordDeleted()                    {}
func (nopObserver) RecordEvicted()                    {}
func (nopObserver) FilterRefreshed(domain.FilterName) {}

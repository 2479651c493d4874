// Package availability carries book availability changes from the catalog to
// any number of live readers: the Event value, the multicast Bus and the
// Assembler that seeds each reader with a snapshot before the live feed.
package availability

// Status is a book's borrow status as seen by availability readers.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBorrowed  Status = "BORROWED"
	StatusDeleted   Status = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBorrowed, StatusDeleted:
		return true
	}
	return false
}

// Event notifies that a book's status changed. It is a value, never stored.
type Event struct {
	BookID string `json:"bookId"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

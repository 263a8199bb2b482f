// Package cart holds the consolidated rental lines of one customer session.
package cart

import (
	"errors"
	"slices"
	"sync"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidRange    = errors.New("end date must not be before start date")
	// ErrStale is returned by the conditional mutations when the cart changed
	// after the given version was read.
	ErrStale = errors.New("cart changed since it was read")
)

// Store is the cart of a single session. All methods are safe for concurrent
// use; every successful mutation bumps Version.
type Store struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	version uint64
}

// New returns a store holding lines as-is, e.g. when restoring a session.
func New(lines ...domain.CartLine) *Store {
	return &Store{lines: slices.Clone(lines)}
}

// ValidateLine checks the quantity and date range of a line before it is added.
func ValidateLine(line domain.CartLine) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if line.StartDate.IsZero() || line.EndDate.IsZero() || line.EndDate.Before(line.StartDate) {
		return ErrInvalidRange
	}
	return nil
}

// Add merges line into an existing line with the same product and date range,
// or appends it.
func (s *Store) Add(line domain.CartLine) error {
	if err := ValidateLine(line); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.add(line)
	return nil
}

// AddIf behaves like Add but only applies when the store is still at version.
func (s *Store) AddIf(version uint64, line domain.CartLine) error {
	if err := ValidateLine(line); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != version {
		return ErrStale
	}
	s.add(line)
	return nil
}

func (s *Store) add(line domain.CartLine) {
	key := line.Key()
	for i := range s.lines {
		if s.lines[i].Key() == key {
			s.lines[i].Quantity += line.Quantity
			s.version++
			return
		}
	}
	s.lines = append(s.lines, line)
	s.version++
}

// Snapshot returns a copy of the lines together with the version they were
// read at.
func (s *Store) Snapshot() ([]domain.CartLine, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines), s.version
}

// Remove deletes every line of productID starting on start.
func (s *Store) Remove(productID string, start domain.Date) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.lines)
	s.lines = slices.DeleteFunc(s.lines, func(l domain.CartLine) bool {
		return l.ProductID == productID && l.StartDate == start
	})
	if len(s.lines) == n {
		return false
	}
	s.version++
	return true
}

// SetQuantity sets the quantity of the matching lines, clamped to a minimum of 1.
func (s *Store) SetQuantity(productID string, start domain.Date, quantity int) bool {
	quantity = max(quantity, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	for i := range s.lines {
		if s.lines[i].ProductID == productID && s.lines[i].StartDate == start {
			s.lines[i].Quantity = quantity
			matched = true
		}
	}
	if matched {
		s.version++
	}
	return matched
}

// Find returns the first line of productID starting on start.
func (s *Store) Find(productID string, start domain.Date) (domain.CartLine, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lines {
		if l.ProductID == productID && l.StartDate == start {
			return l, s.version, true
		}
	}
	return domain.CartLine{}, s.version, false
}

// Reschedule moves the matching lines to a new date range, keeping quantity
// and color. Lines that end up sharing a key are not merged.
func (s *Store) Reschedule(productID string, oldStart, newStart, newEnd domain.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reschedule(productID, oldStart, newStart, newEnd)
}

// RescheduleIf behaves like Reschedule but only applies when the store is
// still at version.
func (s *Store) RescheduleIf(version uint64, productID string, oldStart, newStart, newEnd domain.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != version {
		return false, ErrStale
	}
	return s.reschedule(productID, oldStart, newStart, newEnd)
}

func (s *Store) reschedule(productID string, oldStart, newStart, newEnd domain.Date) (bool, error) {
	if newStart.IsZero() || newEnd.IsZero() || newEnd.Before(newStart) {
		return false, ErrInvalidRange
	}

	matched := false
	for i := range s.lines {
		if s.lines[i].ProductID == productID && s.lines[i].StartDate == oldStart {
			s.lines[i].StartDate = newStart
			s.lines[i].EndDate = newEnd
			matched = true
		}
	}
	if matched {
		s.version++
	}
	return matched, nil
}

// Deduct takes lines that left the cart, e.g. because they were ordered, out
// of it. Each deducted line lowers the quantity of the lines with the same
// key and color; lines reaching zero are dropped. Anything else stays.
func (s *Store) Deduct(lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range lines {
		for i := range s.lines {
			if d.Quantity == 0 {
				break
			}
			l := &s.lines[i]
			if l.Key() != d.Key() || l.Color != d.Color {
				continue
			}
			taken := min(l.Quantity, d.Quantity)
			l.Quantity -= taken
			d.Quantity -= taken
		}
	}

	s.lines = slices.DeleteFunc(s.lines, func(l domain.CartLine) bool { return l.Quantity <= 0 })
	s.version++
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.version++
}

// ItemCount is the sum of quantities across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.lines)
}

func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

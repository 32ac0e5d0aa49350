package ledger

import "time"

// SetClock replaces the time source used for run timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

package poller

import "sync"

// Sequence помечает запросы одного потока монотонными номерами и отбрасывает
// ответы, пришедшие после более свежего уже примененного.
type Sequence struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Next выдает номер очередному запросу.
func (s *Sequence) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Accept разрешает применить ответ с номером seq, если он свежее примененного.
func (s *Sequence) Accept(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	return true
}

// Invalidate отбрасывает все запросы, которые сейчас в полете.
func (s *Sequence) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = s.issued
}

package queue

import "sync/atomic"

// Sequencer stamps price updates in intake order. Workers may run updates out
// of order; the store keeps only the highest sequence per product.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number, starting at 1.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Last returns the most recently issued sequence, or 0.
func (s *Sequencer) Last() uint64 { return s.n.Load() }

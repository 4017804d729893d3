package edit

import "time"

// Result is the outcome of one dispatch attempt on a channel.
//
// Edits holds the operations as published, in publish order. Reverses holds
// one reverse per edit in reverse order relative to Edits: applying
// Reverses[0] undoes the last edit applied, so replaying Reverses front to
// back unwinds the whole batch correctly.
type Result struct {
	Success   bool
	Edits     []Operation
	Reverses  []Operation
	Revision  uint64
	Timestamp time.Time
	Err       error
}

// Edit returns the first published operation, or the zero Operation for an
// empty result. Most results carry exactly one edit.
func (r Result) Edit() Operation {
	if len(r.Edits) == 0 {
		return Operation{}
	}
	return r.Edits[0]
}

// Reverse returns the first reverse operation, or the zero Operation when
// the dispatch produced none.
func (r Result) Reverse() Operation {
	if len(r.Reverses) == 0 {
		return Operation{}
	}
	return r.Reverses[0]
}

// Record is one authoritative edit together with the revision it produced.
// Providers return records in ascending, contiguous revision order.
type Record struct {
	Edit      Operation `json:"edit"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

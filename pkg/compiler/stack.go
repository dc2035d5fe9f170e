package compiler

// stackTracker maintains the running and peak evaluation-stack depth
// for a single method compilation. Every emission primitive in
// encode.go routes its net stack delta through update so code emission
// and stack accounting can never drift apart from one another.
type stackTracker struct {
	current int
	max     int
}

// update applies delta to the current depth, failing with
// ErrStackUnderflow if that would take it negative — a generator bug,
// never a user error, since a well-formed tree by construction keeps
// the stack non-negative at every point. max is raised to track the
// deepest point seen so far, matching CompiledMethod.StackSize.
func (s *stackTracker) update(delta int) error {
	s.current += delta
	if s.current < 0 {
		return ErrStackUnderflow
	}
	if s.current > s.max {
		s.max = s.current
	}
	return nil
}

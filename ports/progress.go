package ports

// Progress receives purely observational updates while the null distribution
// is being built. Implementations must be safe for concurrent use; calls are
// never allowed to influence the computation.
type Progress interface {
	PermutationsCompleted(done, total int)
}

// ProgressFunc adapts a plain function to the Progress interface.
type ProgressFunc func(done, total int)

func (f ProgressFunc) PermutationsCompleted(done, total int) {
	f(done, total)
}

package user

// SetRandFunc swaps the student number generator; the returned func restores it.
func SetRandFunc(fn func(n int) int) (restore func()) {
	prev := randFunc
	randFunc = fn
	return func() { randFunc = prev }
}

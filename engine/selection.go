package engine

// SelectIndex picks the selection after a fetch completes. A user's explicit
// pick survives a refresh of the same request when it is still in range;
// everything else selects the best quote.
func SelectIndex(refresh, explicit bool, previous, n int) int {
	if refresh && explicit && previous >= 0 && previous < n {
		return previous
	}
	return 0
}

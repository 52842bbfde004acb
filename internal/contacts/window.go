package contacts

// FindNearestPreceding returns the index of the closest line above start, at most maxWindow lines
// away, for which pred holds. start itself is not examined.
func FindNearestPreceding(lines []string, start int, pred func(string) bool, maxWindow int) (int, bool) {
	if start > len(lines) {
		start = len(lines)
	}
	lo := max(start-maxWindow, 0)
	for i := start - 1; i >= lo; i-- {
		if pred(lines[i]) {
			return i, true
		}
	}
	return -1, false
}

// findNearestAbove is [FindNearestPreceding] restricted to lines at or after floor.
func findNearestAbove(lines []string, floor, start int, pred func(string) bool, maxWindow int) (int, bool) {
	if floor < 0 {
		floor = 0
	}
	if start <= floor {
		return -1, false
	}
	idx, ok := FindNearestPreceding(lines[floor:], start-floor, pred, maxWindow)
	if !ok {
		return -1, false
	}
	return idx + floor, true
}

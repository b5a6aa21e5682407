package utils

// GetNextEnum steps to the following value of a zero-based enum, wrapping after max
func GetNextEnum[T ~int](current T, max T) T {
	next := current + 1
	if next > max {
		return 0
	}
	return next
}

// GetPrevEnum steps back, wrapping to max before zero
func GetPrevEnum[T ~int](current T, max T) T {
	prev := current - 1
	if prev < 0 {
		return max
	}
	return prev
}

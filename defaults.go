package zpacket

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// positive returns def when v <= 0.
func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

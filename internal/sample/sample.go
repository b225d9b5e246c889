// Package sample provides uniform downsampling of telemetry record slices.
package sample

// Downsample selects an evenly spaced subset of at most limit records.
// The step is len(records)/limit using integer division (minimum 1), and the
// result is truncated to limit entries. A limit of zero or less, or a slice
// already within the limit, returns the input unchanged.
func Downsample[T any](records []T, limit int) []T {
	n := len(records)
	if limit <= 0 || n <= limit {
		return records
	}

	step := n / limit
	if step < 1 {
		step = 1
	}

	out := make([]T, 0, limit)
	for i := 0; i < n && len(out) < limit; i += step {
		out = append(out, records[i])
	}
	return out
}

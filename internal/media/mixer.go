package media

import "math"

// Mix sums two PCM buffers sample by sample, saturating at the int16 range. The
// shorter input is treated as trailing silence.
func Mix(a, b []int16) []int16 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var s int32
		if i < len(a) {
			s += int32(a[i])
		}
		if i < len(b) {
			s += int32(b[i])
		}
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		out[i] = int16(s)
	}
	return out
}

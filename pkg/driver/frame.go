package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFrame parses one conversion-frame line of the wire protocol. A frame
// is a comma-separated list of input:value pairs, one pair per sampled input:
//
//	6:2048,7:1031
//
// Inputs must be in [0, MaxInput] and values in [0, MaxValue]. A frame that
// fails validation is rejected whole.
func ParseFrame(line string) ([]Sample, error) {
	if line == "" {
		return nil, fmt.Errorf("empty frame")
	}
	parts := strings.Split(line, ",")
	samples := make([]Sample, 0, len(parts))
	for _, part := range parts {
		in, val, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", part)
		}
		input, err := strconv.Atoi(in)
		if err != nil {
			return nil, fmt.Errorf("bad input in pair %q: %w", part, err)
		}
		if input < 0 || input > MaxInput {
			return nil, fmt.Errorf("input %d out of range [0, %d]", input, MaxInput)
		}
		value, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad value in pair %q: %w", part, err)
		}
		if value > MaxValue {
			return nil, fmt.Errorf("value %d exceeds %d-bit range", value, ValueBits)
		}
		samples = append(samples, Sample{Input: input, Value: uint32(value)})
	}
	return samples, nil
}

package utils

import (
	"errors"
	"strconv"
	"strings"
)

// IsDecimal reports whether s is a base-10 integer, ignoring surrounding
// whitespace. Values outside the int64 range still count as integers.
func IsDecimal(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// IsDouble reports whether s is a floating point number, ignoring
// surrounding whitespace. Integers, exponents, "inf" and "nan" are accepted.
func IsDouble(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// ToDecimal parses s as a base-10 integer, ignoring surrounding whitespace.
//
// Parameters:
//   - s: The text to parse
//
// Returns:
//   - The value
//   - An error if s is not an integer or does not fit in an int64
func ToDecimal(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// ToDouble parses s as a float64, ignoring surrounding whitespace.
func ToDouble(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ToClientID parses s as a client id.
//
// Returns:
//   - The id
//   - An error if s is not a decimal that fits in a uint32
func ToClientID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}

	return uint32(id), nil
}

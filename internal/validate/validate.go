package validate

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// MaxPositionSeconds is the largest offset the INTEGER position column holds.
const MaxPositionSeconds = math.MaxInt32

func checkID(value, field string) string {
	if value == "" {
		return fmt.Sprintf("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Sprintf("%s must be a valid UUID", field)
	}
	return ""
}

func VideoID(s string) string  { return checkID(s, "video id") }
func CourseID(s string) string { return checkID(s, "course id") }

func PositionSeconds(n int) string {
	if n < 0 {
		return "seconds must be zero or greater"
	}
	if n > MaxPositionSeconds {
		return fmt.Sprintf("seconds must be %d or fewer", MaxPositionSeconds)
	}
	return ""
}

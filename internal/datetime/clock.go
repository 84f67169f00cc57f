package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)?`)

// Clock is a wall-clock time as shown by the booking widget.
type Clock struct {
	Hour     int
	Minute   int
	Meridiem string // "AM", "PM" or empty for 24h text
}

// ParseClock finds the first clock token in text, e.g. "1:20 PM" inside
// "Select 1:20 PM 7 spots left".
func ParseClock(text string) (Clock, bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return Clock{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	meridiem := strings.ToUpper(m[3])

	if minute > 59 {
		return Clock{}, false
	}
	if meridiem != "" && (hour < 1 || hour > 12) {
		return Clock{}, false
	}
	if meridiem == "" && hour > 23 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute, Meridiem: meridiem}, true
}

// HasClock reports whether text contains a clock token with a meridiem.
func HasClock(text string) bool {
	m := clockPattern.FindStringSubmatch(text)
	return m != nil && m[3] != ""
}

// String renders "H:MM AM".
func (c Clock) String() string {
	if c.Meridiem == "" {
		return fmt.Sprintf("%d:%02d", c.Hour, c.Minute)
	}
	return fmt.Sprintf("%d:%02d %s", c.Hour, c.Minute, c.Meridiem)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	hour := c.Hour
	switch c.Meridiem {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}
	return hour*60 + c.Minute
}

package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

var timeUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
}

// ParseStringTime converts config strings like "500ms", "5s" or "2m" into a
// time.Duration. Invalid input yields 0 and an error log, matching how the
// rest of the configuration layer degrades.
func ParseStringTime(timeString string) time.Duration {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	for _, tu := range timeUnits {
		if !strings.HasSuffix(timeString, tu.suffix) {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSuffix(timeString, tu.suffix))
		if err != nil {
			logger.ErrorF("Error parsing time string: %s", err.Error())
			return 0
		}
		return time.Duration(number) * tu.unit
	}
	logger.ErrorF("invalid time format: %s", timeString)
	return 0
}

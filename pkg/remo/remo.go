package remo

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tenntenn/natureremo"
)

// Signal is a raw infrared signal as understood by the Remo local API.
type Signal = natureremo.IRSignal

const (
	// DefaultTimeout bounds every request made to a Remo.
	DefaultTimeout = 10 * time.Second
)

var ErrNoAddress = errors.New("remo address is empty")

// FormatSignal renders a signal as "format,freq,data..." for logging.
func FormatSignal(s *Signal) string {
	if s == nil {
		return ""
	}

	parts := make([]string, 0, len(s.Data)+2)
	parts = append(parts, s.Format, fmt.Sprint(s.Freq))
	for _, d := range s.Data {
		parts = append(parts, fmt.Sprint(d))
	}
	return strings.Join(parts, ",")
}

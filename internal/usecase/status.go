package usecase

import (
	"context"
	"fmt"
	"io"
	"time"
)

// StatusReporter periodically prints how long ASHE has been running.
type StatusReporter struct {
	interval time.Duration
	out      io.Writer
	now      func() time.Time
}

// NewStatusReporter creates a reporter printing to out every interval.
func NewStatusReporter(interval time.Duration, out io.Writer) *StatusReporter {
	return &StatusReporter{interval: interval, out: out, now: time.Now}
}

// Run prints the elapsed time since it was called every interval until ctx is done.
func (s *StatusReporter) Run(ctx context.Context) {
	start := s.now()
	fmt.Fprintln(s.out, "ASHE started.")
	fmt.Fprintf(s.out, "ASHE runtime: %s\n", FormatElapsed(0))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(s.out, "ASHE runtime: %s\n", FormatElapsed(s.now().Sub(start)))
		}
	}
}

// FormatElapsed renders d as H:MM:SS with sub-second precision dropped.
// Hours are not wrapped into days.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

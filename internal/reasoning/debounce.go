package reasoning

import "github.com/rinkside/standwatch/internal/models"

// Debouncer decides when a status change warrants an alert. Upward
// transitions always fire; sustained red re-fires only every n windows so a
// stand stuck red does not spam the stream. Yellow never re-fires.
type Debouncer struct {
	n         int
	lastAlert map[string]int
}

func NewDebouncer(n int) *Debouncer {
	if n < 1 {
		n = 1
	}
	return &Debouncer{
		n:         n,
		lastAlert: make(map[string]int),
	}
}

// ShouldAlert reports whether an alert fires for this stand at this window,
// and records the window when it does.
func (d *Debouncer) ShouldAlert(stand string, window int, prev, curr models.Status) bool {
	switch {
	case curr.Severity() > prev.Severity():
		d.lastAlert[stand] = window
		return true
	case curr == models.StatusRed && prev == models.StatusRed:
		last, ok := d.lastAlert[stand]
		if !ok || window-last >= d.n {
			d.lastAlert[stand] = window
			return true
		}
	}
	return false
}

// Package progress carries scan progress out to whatever front end is
// attached. The core never probes for a UI; callers inject a sink and the
// Nop implementation serves headless runs.
package progress

// Sink receives status text and percentage updates during scan cycles.
type Sink interface {
	OnStatus(text string)
	OnProgress(percent float64)
	OnShow()
	OnHide()
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) OnStatus(string)     {}
func (Nop) OnProgress(float64)  {}
func (Nop) OnShow()             {}
func (Nop) OnHide()             {}

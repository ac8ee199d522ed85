package entity

import (
	"fmt"
	"time"
)

// MaxAutoScroll is the longest lazy-load scroll pass a discovery run may
// ask for. Opening a gallery has to finish inside one API request.
const MaxAutoScroll = 2 * time.Minute

// Options are the persisted user preferences for the gallery.
type Options struct {
	Columns           int `json:"columns"`
	MinSize           int `json:"min_size"`
	MaxSize           int `json:"max_size"`
	AutoScrollSeconds int `json:"auto_scroll_seconds"`
}

func DefaultOptions() Options {
	return Options{
		Columns:           6,
		MinSize:           500,
		MaxSize:           10000,
		AutoScrollSeconds: 0,
	}
}

func (o Options) Window() SizeWindow {
	return SizeWindow{MinSize: o.MinSize, MaxSize: o.MaxSize}
}

func (o Options) AutoScroll() time.Duration {
	return time.Duration(o.AutoScrollSeconds) * time.Second
}

func (o Options) Validate() error {
	if o.Columns < 1 {
		return fmt.Errorf("columns must be >= 1, got %d", o.Columns)
	}
	if o.AutoScrollSeconds < 0 {
		return fmt.Errorf("auto_scroll_seconds must be >= 0, got %d", o.AutoScrollSeconds)
	}
	if o.AutoScroll() > MaxAutoScroll {
		return fmt.Errorf("auto_scroll_seconds must be <= %d, got %d", int(MaxAutoScroll.Seconds()), o.AutoScrollSeconds)
	}
	return o.Window().Validate()
}

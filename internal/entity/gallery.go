package entity

import "time"

// RunState is the discovery pipeline state of a gallery session.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateAutoScrolling RunState = "auto_scrolling"
	StateExtracting    RunState = "extracting"
	StateValidating    RunState = "validating"
	StateDone          RunState = "done"
)

// ScanConfig parameterizes one discovery run.
type ScanConfig struct {
	Window     SizeWindow
	AutoScroll time.Duration // 0 disables the lazy-load scroll pass
}

// PageSnapshot is the serialized DOM of a page at one point in time.
type PageSnapshot struct {
	URL  string
	HTML string
}

// GalleryStatus is a point-in-time view of a gallery session.
type GalleryStatus struct {
	ID             string      `json:"id"`
	PageURL        string      `json:"page_url"`
	State          RunState    `json:"state"`
	Loading        bool        `json:"loading"`
	ScrollProgress float64     `json:"scroll_progress"`
	Strategy       string      `json:"strategy,omitempty"`
	Window         SizeWindow  `json:"window"`
	Images         []ImageItem `json:"images"`
	LastError      string      `json:"last_error,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

package request

import "github.com/user/gallery-service/internal/entity"

// OpenGalleryRequest opens a page as a gallery. Omitted filter fields fall
// back to the saved options of Profile.
type OpenGalleryRequest struct {
	URL               string `json:"url"`
	Profile           string `json:"profile"`
	MinSize           *int   `json:"min_size"`
	MaxSize           *int   `json:"max_size"`
	AutoScrollSeconds *int   `json:"auto_scroll_seconds"`
}

// Apply overlays the fields present in the request onto opts.
func (r OpenGalleryRequest) Apply(opts entity.Options) entity.Options {
	if r.MinSize != nil {
		opts.MinSize = *r.MinSize
	}
	if r.MaxSize != nil {
		opts.MaxSize = *r.MaxSize
	}
	if r.AutoScrollSeconds != nil {
		opts.AutoScrollSeconds = *r.AutoScrollSeconds
	}
	return opts
}

// ReloadRequest re-runs discovery. Omitted fields keep the current window.
type ReloadRequest struct {
	MinSize *int `json:"min_size"`
	MaxSize *int `json:"max_size"`
}

func (r ReloadRequest) Apply(w entity.SizeWindow) entity.SizeWindow {
	if r.MinSize != nil {
		w.MinSize = *r.MinSize
	}
	if r.MaxSize != nil {
		w.MaxSize = *r.MaxSize
	}
	return w
}

// Selection actions.
const (
	ActionToggle      = "toggle"
	ActionSelectAll   = "select_all"
	ActionDeselectAll = "deselect_all"
)

type SelectionRequest struct {
	Action string `json:"action"`
	URL    string `json:"url"` // required for toggle
}

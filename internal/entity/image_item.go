package entity

import "fmt"

// ImageItem is a validated image with known natural dimensions, as shown in
// a gallery. URL is the identity.
type ImageItem struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Selected bool   `json:"selected"`
}

// Dimensions are the natural pixel size reported by an image decode.
type Dimensions struct {
	Width  int
	Height int
}

// SizeWindow is the inclusive [MinSize, MaxSize] pixel range applied to
// both width and height.
type SizeWindow struct {
	MinSize int `json:"min_size"`
	MaxSize int `json:"max_size"`
}

func (w SizeWindow) Validate() error {
	if w.MinSize < 0 {
		return fmt.Errorf("min_size must be >= 0, got %d", w.MinSize)
	}
	if w.MaxSize < w.MinSize {
		return fmt.Errorf("max_size (%d) must be >= min_size (%d)", w.MaxSize, w.MinSize)
	}
	return nil
}

// Contains reports whether both dimensions fall inside the window.
func (w SizeWindow) Contains(width, height int) bool {
	return width >= w.MinSize && width <= w.MaxSize &&
		height >= w.MinSize && height <= w.MaxSize
}

package response

import "github.com/user/gallery-service/internal/entity"

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// GalleryResponse is a gallery status plus counts for the UI header.
type GalleryResponse struct {
	*entity.GalleryStatus
	Count         int `json:"count"`
	SelectedCount int `json:"selected_count"`
}

func NewGalleryResponse(status *entity.GalleryStatus) GalleryResponse {
	resp := GalleryResponse{GalleryStatus: status, Count: len(status.Images)}
	for _, item := range status.Images {
		if item.Selected {
			resp.SelectedCount++
		}
	}
	return resp
}

type OptionsResponse struct {
	Profile string `json:"profile"`
	entity.Options
}

type ScanHistoryResponse struct {
	URL  string            `json:"url"`
	Runs []*entity.ScanRun `json:"runs"`
}

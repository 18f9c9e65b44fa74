package models

// RequestUploadRequest asks the server for an upload slot.
type RequestUploadRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// RequestUploadResponse is the signed upload slot.
type RequestUploadResponse struct {
	SignedURL string `json:"signedUrl"`
	Path      string `json:"path"`
	Token     string `json:"token"`
	MemoryID  string `json:"memoryId"`
}

// CompleteUploadRequest finalizes a transferred object into a media item.
type CompleteUploadRequest struct {
	Path     string   `json:"path"`
	Filename string   `json:"filename"`
	MimeType string   `json:"mimeType"`
	Size     int64    `json:"size"`
	Width    *int     `json:"width,omitempty"`
	Height   *int     `json:"height,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

package dto

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	ShortLink string `json:"shortLink"`
	ShortCode string `json:"shortCode"`
	ExpiresAt int64  `json:"expiresAt"`
}

// LinkInfo is the public view of a link, timestamps in epoch millis.
type LinkInfo struct {
	FileNames         []string `json:"fileNames"`
	FileSizes         []int64  `json:"fileSizes"`
	TotalSize         int64    `json:"totalSize"`
	CreatedAt         int64    `json:"createdAt"`
	ExpiresAt         int64    `json:"expiresAt"`
	ExpiresInHours    int64    `json:"expiresInHours"`
	DownloadCount     int64    `json:"downloadCount"`
	Expired           bool     `json:"expired"`
	PasswordProtected bool     `json:"passwordProtected"`
}

// MyUpload is one entry of the owner's dashboard listing.
type MyUpload struct {
	ShortCode         string   `json:"shortCode"`
	FileNames         []string `json:"fileNames"`
	FileSizes         []int64  `json:"fileSizes"`
	TotalSize         int64    `json:"totalSize"`
	CreatedAt         int64    `json:"createdAt"`
	ExpiresAt         int64    `json:"expiresAt"`
	DownloadCount     int64    `json:"downloadCount"`
	Expired           bool     `json:"expired"`
	PasswordProtected bool     `json:"passwordProtected"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

package dto

// DownloadRequest is the optional JSON body of POST /api/:shortCode/download.
type DownloadRequest struct {
	Password string `json:"password"`
}

type InfoQuery struct {
	Password string `form:"password"`
}

type QRQuery struct {
	Format string `form:"format"`
}

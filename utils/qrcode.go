package utils

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

const QRImageSize = 250

// QRRenderer turns a URL into a PNG image.
type QRRenderer interface {
	RenderPNG(content string) ([]byte, error)
}

type PNGQRRenderer struct {
	Size int
}

func NewQRRenderer() *PNGQRRenderer {
	return &PNGQRRenderer{Size: QRImageSize}
}

func (r *PNGQRRenderer) RenderPNG(content string) ([]byte, error) {
	size := r.Size
	if size <= 0 {
		size = QRImageSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// EncodeBase64 returns the standard base64 form of an image payload.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

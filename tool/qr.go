package tool

import (
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 512
)

// ShareQR encodes a share link as a PNG QR code.
func ShareQR(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, fmt.Errorf("share link must not be empty")
	}
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %v", err)
	}
	return png, nil
}

// WriteShareQR writes the QR PNG for link to path.
func WriteShareQR(path, link string) error {
	png, err := ShareQR(link, defaultQRSize)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}

// Package qr renders share URLs as scannable images.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// EncodePNG renders the given URL as a PNG QR code and returns it
// base64-encoded, ready to embed in a JSON response.
func EncodePNG(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

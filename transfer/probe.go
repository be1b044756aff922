package transfer

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/types"
)

// Previews above this size are skipped; dimensions are still reported.
const maxPreviewBytes = 8 << 20

// ProbeResult carries the pixel dimensions and local preview of a raster image.
type ProbeResult struct {
	Width      int
	Height     int
	PreviewURI string
}

// ProbeImage decodes a raster image far enough to learn its pixel dimensions
// and build a data-URI preview usable without a network round trip. Best
// effort: any failure (unsupported type, corrupt file, read error) returns nil
// and the file uploads without dimensions. Nothing is reported to the user.
func ProbeImage(src types.FileSource) *ProbeResult {
	if !tool.IsRasterImage(src.MIME) {
		return nil
	}
	file, err := src.Open()
	if err != nil {
		tool.DefaultLogger.Debugf("Image probe skipped for %s: %v", src.Name, err)
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			tool.DefaultLogger.Debugf("Failed to close %s after probe: %v", src.Name, err)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		tool.DefaultLogger.Debugf("Image probe failed to read %s: %v", src.Name, err)
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		tool.DefaultLogger.Debugf("Image probe failed to decode %s: %v", src.Name, err)
		return nil
	}

	result := &ProbeResult{Width: cfg.Width, Height: cfg.Height}
	if len(data) <= maxPreviewBytes {
		result.PreviewURI = "data:" + src.MIME + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	return result
}

package tool

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/nimbusdrive/nimbus-go/types"
)

// FileSourceFromPath builds a FileSource for a file on disk. The MIME type is
// derived from the extension; unknown extensions fail validation later with a
// clear reason rather than being guessed at.
func FileSourceFromPath(path string) (types.FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.FileSource{}, fmt.Errorf("failed to stat %s: %v", path, err)
	}
	if info.IsDir() {
		return types.FileSource{}, fmt.Errorf("%s is a directory", path)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return types.FileSource{
		Name: filepath.Base(path),
		MIME: mimeType,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

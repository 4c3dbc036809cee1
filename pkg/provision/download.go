package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// HTTPDownloader is a Downloader backed by net/http.
type HTTPDownloader struct {
	client *http.Client
	logger *telemetry.Logger
}

// NewHTTPDownloader creates a downloader with a sane default timeout.
func NewHTTPDownloader(logger *telemetry.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{Timeout: 10 * time.Minute},
		logger: logger.NewComponentLogger("download"),
	}
}

// Fetch implements Downloader. The file is written to a temporary
// sibling and renamed into place so a failed download never leaves a
// truncated destination behind.
func (d *HTTPDownloader) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Op: "download", Detail: "invalid URL " + url, Err: err}
	}

	d.logger.Infof("downloading %s", url)
	resp, err := d.client.Do(req)
	if err != nil {
		return &Error{Op: "download", Detail: "failed to fetch " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Op: "download", Detail: fmt.Sprintf("response code %d from %s", resp.StatusCode, url)}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return &Error{Op: "download", Detail: "cannot create directory for " + dest, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return &Error{Op: "download", Detail: "cannot create temporary file for " + dest, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return &Error{Op: "download", Detail: "failed while reading " + url, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "download", Detail: "failed to write " + dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &Error{Op: "download", Detail: "failed to move download into place at " + dest, Err: err}
	}

	d.logger.Infof("downloaded %s to %s", url, dest)
	return nil
}

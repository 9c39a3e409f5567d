// Package report renders printable ledger reports to PDF through a Gotenberg
// instance.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultRenderTimeout = 30 * time.Second
	convertHTMLPath      = "/forms/chromium/convert/html"
	maxErrorBody         = 512
)

// a4Portrait is the page setup used for every ledger report, in inches.
var a4Portrait = map[string]string{
	"paperWidth":      "8.27",
	"paperHeight":     "11.7",
	"marginTop":       "0.6",
	"marginBottom":    "0.6",
	"marginLeft":      "0.5",
	"marginRight":     "0.5",
	"printBackground": "true",
}

// Client converts report HTML to PDF with Gotenberg's Chromium module.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient targets the Gotenberg instance at baseURL. A non-positive timeout
// means thirty seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// Ping reports whether Gotenberg answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// RenderHTML uploads html as the index.html Gotenberg expects and returns the
// A4 PDF.
func (c *Client) RenderHTML(ctx context.Context, html []byte) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for field, value := range a4Portrait {
		if err := form.WriteField(field, value); err != nil {
			return nil, err
		}
	}
	file, err := form.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(html); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+convertHTMLPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: gotenberg %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("report: gotenberg %s: status %d: %s",
			req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return io.ReadAll(resp.Body)
}

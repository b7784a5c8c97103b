package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Atronar/yt-dlp-web-api/faults"
)

// DirectTimeout bounds a whole direct download.
const DirectTimeout = 30 * time.Second

// Direct pulls bytes straight from a URL, bypassing the extractor.
type Direct struct {
	timeout time.Duration
}

func NewDirect() *Direct {
	return &Direct{timeout: DirectTimeout}
}

// Fetch writes the body at src to dest. proxy, when set, is a
// user:pass@host:port entry used as an https proxy.
func (d *Direct) Fetch(ctx context.Context, src, dest, proxy string) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		u, err := url.Parse("https://" + proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy entry: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	client := &http.Client{Timeout: d.timeout, Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("invalid direct URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return faults.MarkTransient(fmt.Errorf("direct download failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("direct download returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return faults.MarkTransient(err)
		}
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return faults.MarkTransient(fmt.Errorf("direct download interrupted: %w", err))
	}
	return out.Close()
}

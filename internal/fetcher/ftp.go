package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads files over anonymous FTP. Some regional government
// portals still publish disclosure files this way.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fault.Wrap(fault.KindNetwork, err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", fault.Errorf(fault.KindNetwork, "ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", fault.New(fault.KindNetwork, "ftp: empty path in url")
	}

	return host, path, nil
}

// Fetch connects to the FTP server, retrieves the file, and returns its
// full contents. FTP carries no content type, so the mime falls back to
// application/octet-stream.
func (f *FTPFetcher) Fetch(ctx context.Context, ftpURL string) (*Response, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "ftp: dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "ftp: login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "ftp: retrieve")
	}
	defer resp.Close() //nolint:errcheck

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "ftp: read body")
	}

	return &Response{Body: body, MimeType: "application/octet-stream"}, nil
}

// ForURL returns the fetcher matching the URL scheme: FTP for ftp://,
// otherwise the HTTP fetcher.
func ForURL(rawURL string, httpF *HTTPFetcher, ftpF *FTPFetcher) Fetcher {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "ftp" {
		return ftpF
	}
	return httpF
}

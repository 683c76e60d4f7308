// Package getter owns the process-wide HTTP clients and wraps
// hashicorp/go-getter for downloading artifacts from http(s) and file
// repositories.
package getter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	getter "github.com/hashicorp/go-getter/v2"
)

// Getter downloads single artifacts with go-getter over a shared HTTP client.
type Getter struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Getter. A nil client uses http.DefaultClient.
func New(client *http.Client, logger *slog.Logger) *Getter {
	if client == nil {
		client = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Getter{client: client, logger: logger}
}

// FetchOpts configures a single download.
type FetchOpts struct {
	// Header is added to HTTP requests, typically for Authorization.
	Header http.Header
}

// FetchFile downloads src to the file dest. src may be an http(s) or a
// file:// URL; local files are copied, never symlinked.
func (g *Getter) FetchFile(ctx context.Context, src, dest string, opts FetchOpts) error {
	g.logger.Debug("fetching file", "src", src, "dest", dest)

	client := &getter.Client{
		Getters: []getter.Getter{
			&getter.HttpGetter{
				Client:                g.client,
				Header:                opts.Header,
				DoNotCheckHeadFirst:   true,
				XTerraformGetDisabled: true,
			},
			new(getter.FileGetter),
		},
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:             src,
		Dst:             dest,
		GetMode:         getter.ModeFile,
		Copy:            true,
		DisableSymlinks: true,
	}

	if _, err := client.Get(ctx, req); err != nil {
		return fmt.Errorf("fetching file %s: %w", src, err)
	}

	return nil
}

package documents

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// Router dispatches locators to providers by URL scheme. Locators without
// a scheme, and file:// URLs, go to the local provider.
type Router struct {
	local   tts.DocumentProvider
	schemes map[string]tts.DocumentProvider
}

// NewRouter creates a router that serves local files with FileProvider.
func NewRouter() *Router {
	return &Router{
		local:   FileProvider{},
		schemes: make(map[string]tts.DocumentProvider),
	}
}

// Handle registers p for scheme.
func (r *Router) Handle(scheme string, p tts.DocumentProvider) *Router {
	r.schemes[strings.ToLower(scheme)] = p
	return r
}

func (r *Router) ReadText(ctx context.Context, locator string) (string, error) {
	p, err := r.provider(locator)
	if err != nil {
		return "", err
	}
	return p.ReadText(ctx, locator)
}

func (r *Router) ResolveOutputDir(ctx context.Context, locator string) (string, error) {
	p, err := r.provider(locator)
	if err != nil {
		return "", err
	}
	return p.ResolveOutputDir(ctx, locator)
}

func (r *Router) provider(locator string) (tts.DocumentProvider, error) {
	scheme := schemeOf(locator)
	if scheme == "" || scheme == "file" {
		return r.local, nil
	}
	if p, ok := r.schemes[scheme]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("documents: no provider for scheme %q", scheme)
}

// schemeOf returns the lower-cased URL scheme, or "" for plain paths.
// Single-letter schemes are treated as Windows drive letters.
func schemeOf(locator string) string {
	if !strings.Contains(locator, "://") {
		return ""
	}
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

var _ tts.DocumentProvider = (*Router)(nil)

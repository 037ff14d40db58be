package documents

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/ttsbridge/internal/textutil"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// ErrNotDirectory is returned when an output locator names a file.
var ErrNotDirectory = errors.New("documents: not a directory")

// FileProvider reads documents from the local filesystem.
type FileProvider struct{}

// ReadText reads the file behind locator. Markdown is stripped to text.
func (FileProvider) ReadText(_ context.Context, locator string) (string, error) {
	path, err := LocalPath(locator)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if textutil.IsMarkdown(path) {
		return textutil.StripMarkdown(data), nil
	}
	return string(data), nil
}

// ResolveOutputDir returns locator as a local path after checking that it
// is an existing directory.
func (FileProvider) ResolveOutputDir(_ context.Context, locator string) (string, error) {
	path, err := LocalPath(locator)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat output directory: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return path, nil
}

// LocalPath turns a path, ~ path or file:// URL into a filesystem path.
func LocalPath(locator string) (string, error) {
	if locator == "" {
		return "", errors.New("documents: empty locator")
	}
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("invalid file URL %q: %w", locator, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("file URL %q: remote host not supported", locator)
		}
		return u.Path, nil
	}
	path, err := homedir.Expand(locator)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", locator, err)
	}
	return path, nil
}

var _ tts.DocumentProvider = FileProvider{}

package device

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultMaxImageBytes bounds the decoded size of an encoded image.
const DefaultMaxImageBytes = 5 << 20

var (
	// ErrNotImage is returned when a resource is not an image.
	ErrNotImage = errors.New("resource is not an image")
	// ErrImageTooLarge is returned when a resource exceeds the size limit.
	ErrImageTooLarge = errors.New("image is too large")
)

// Encoder fetches image references and returns their bytes as standard
// base64 without a data-URI prefix. References are file paths (a leading
// ~/ is expanded), file:// URLs, http(s) URLs or data: URIs.
type Encoder struct {
	client   *http.Client
	maxBytes int64
}

// NewEncoder returns an encoder using client for remote references and
// rejecting images above maxBytes. Zero values select http.DefaultClient
// and DefaultMaxImageBytes.
func NewEncoder(client *http.Client, maxBytes int64) *Encoder {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Encoder{client: client, maxBytes: maxBytes}
}

// Encode reads ref and returns its base64 encoding.
func (e *Encoder) Encode(ctx context.Context, ref string) (string, error) {
	data, err := e.read(ctx, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > e.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, e.maxBytes)
	}
	if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (e *Encoder) read(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return nil, errors.New("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return e.fetch(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", ref, err)
		}
		return e.readFile(u.Path)
	}
	return e.readFile(ref)
}

func (e *Encoder) readFile(path string) ([]byte, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand home: %w", err)
		}
		path = home + path[1:]
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer f.Close()
	return e.readLimited(f)
}

func (e *Encoder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	return e.readLimited(resp.Body)
}

// readLimited reads at most one byte past the limit so oversized inputs
// are detected without being read in full.
func (e *Encoder) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, e.maxBytes)
	}
	return data, nil
}

// decodeDataURI returns the payload of a data: URI.
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data URI: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return []byte(text), nil
}

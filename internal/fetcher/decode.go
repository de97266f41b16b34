package fetcher

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding advertises every encoding decodeBody understands.
const acceptEncoding = "gzip, deflate, br, zstd"

// decodeBody wraps body with a decompressor matching the Content-Encoding
// header. Unknown encodings are passed through unchanged.
func decodeBody(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return reader, nil
	case "deflate":
		reader, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("create deflate reader: %w", err)
		}
		return reader, nil
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "zstd":
		decoder, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	default:
		return io.NopCloser(body), nil
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultCompressMinSize is the smallest body that gets gzipped.
const DefaultCompressMinSize = 1024

// Compress gzips responses of at least minSize bytes for clients that
// accept gzip. Clients offering only br or deflate get the identity
// encoding. A non-positive minSize selects DefaultCompressMinSize.
func Compress(minSize int) (func(http.Handler) http.Handler, error) {
	if minSize <= 0 {
		minSize = DefaultCompressMinSize
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(minSize))
	if err != nil {
		return nil, fmt.Errorf("gzip middleware: %w", err)
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}

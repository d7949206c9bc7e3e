package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/openctemio/console/pkg/apierror"
)

// DecompressConfig bounds request body decompression.
type DecompressConfig struct {
	// MaxCompressedSize caps the bytes read from the wire.
	MaxCompressedSize int64
	// MaxDecompressedSize caps the inflated body.
	MaxDecompressedSize int64
}

// DefaultDecompressConfig suits JSON command bodies, which are small.
func DefaultDecompressConfig() DecompressConfig {
	return DecompressConfig{
		MaxCompressedSize:   1 << 20,
		MaxDecompressedSize: 8 << 20,
	}
}

// Decompress inflates gzip and zstd request bodies based on Content-Encoding.
// Place it before BodyLimit so the limit applies to the inflated body.
func Decompress(cfg DecompressConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if !hasBody(r) || encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}
			if encoding != "gzip" && encoding != "zstd" {
				apierror.New(http.StatusUnsupportedMediaType, apierror.CodeBadRequest,
					fmt.Sprintf("Unsupported Content-Encoding: %s", encoding)).WriteJSON(w)
				return
			}

			body, err := inflate(r.Body, encoding, cfg)
			if err != nil {
				apierror.BadRequest("Invalid compressed request body").WriteJSON(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
		})
	}
}

func inflate(body io.ReadCloser, encoding string, cfg DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, cfg.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read compressed body: %w", err)
	}
	if int64(len(compressed)) > cfg.MaxCompressedSize {
		return nil, fmt.Errorf("compressed body exceeds %d bytes", cfg.MaxCompressedSize)
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // G115: MaxDecompressedSize is a positive byte count
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	out, err := io.ReadAll(io.LimitReader(reader, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(out)) > cfg.MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed body exceeds %d bytes", cfg.MaxDecompressedSize)
	}
	return out, nil
}

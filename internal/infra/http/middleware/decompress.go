package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DecompressConfig configures request body decompression.
type DecompressConfig struct {
	// MaxDecompressedSize caps the decompressed body. Default 10MB.
	MaxDecompressedSize int64
	// MaxCompressedSize caps the compressed input. Default 2MB.
	MaxCompressedSize int64
	// MaxCompressionRatio rejects bodies whose expansion exceeds the
	// ratio, which is the zipbomb signature. Default 100.
	MaxCompressionRatio float64
}

// DefaultDecompressConfig returns limits sized for JSON API payloads.
func DefaultDecompressConfig() *DecompressConfig {
	return &DecompressConfig{
		MaxDecompressedSize: 10 * 1024 * 1024,
		MaxCompressedSize:   2 * 1024 * 1024,
		MaxCompressionRatio: 100,
	}
}

// Decompress inflates gzip and zstd request bodies. It must run before
// BodyLimit so the limit applies to the decompressed bytes.
func Decompress(config *DecompressConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultDecompressConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			encoding := strings.ToLower(r.Header.Get("Content-Encoding"))
			if encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}
			if encoding != "gzip" && encoding != "zstd" {
				http.Error(w, fmt.Sprintf("unsupported Content-Encoding: %s", encoding),
					http.StatusUnsupportedMediaType)
				return
			}

			decompressed, err := inflateBody(r.Body, encoding, config)
			if err != nil {
				// Generic message to the client; the detail stays
				// server-side.
				http.Error(w, "invalid compressed request body", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(decompressed))
			r.ContentLength = int64(len(decompressed))
			r.Header.Del("Content-Encoding")

			next.ServeHTTP(w, r)
		})
	}
}

// inflateBody decompresses with incremental size and ratio checks so a
// crafted payload cannot exhaust memory.
func inflateBody(body io.ReadCloser, encoding string, config *DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, config.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read compressed body: %w", err)
	}
	if int64(len(compressed)) > config.MaxCompressedSize {
		return nil, fmt.Errorf("compressed size exceeds limit %d", config.MaxCompressedSize)
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip reader error: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(config.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader error: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}

	compressedSize := int64(len(compressed))
	var out bytes.Buffer
	buf := make([]byte, 64*1024)
	var total int64

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > config.MaxDecompressedSize {
				return nil, fmt.Errorf("decompressed size exceeds limit %d", config.MaxDecompressedSize)
			}
			if ratio := float64(total) / float64(compressedSize); ratio > config.MaxCompressionRatio {
				return nil, fmt.Errorf("compression ratio %.1f exceeds limit %.1f", ratio, config.MaxCompressionRatio)
			}
			out.Write(buf[:n])
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("decompression error: %w", readErr)
		}
	}

	return out.Bytes(), nil
}

// internal/codec/codec.go
//
// URL-safe content codec.
//
// Context
// -------
// The token publish mode stores page content as a compact string that can
// live inside a URL fragment and needs no backend lookup to resolve.  The
// encoding is raw deflate followed by unpadded base64url.  An optional CSS
// style string rides in the same token, joined to the content with a single
// NUL byte before compression.
//
// Because NUL doubles as the style delimiter, content containing NUL cannot
// be represented.  Compress rejects it with ErrReservedByte rather than
// escaping; see DESIGN.md for the decision record.
//
// Notes
// -----
// • Deflate is the klauspost/compress implementation; the stream format is
//   identical to RFC 1951 raw deflate, so tokens interoperate with any
//   deflate-raw decoder.
// • Oxford commas, two spaces after periods.

package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// styleSep separates content from the optional style inside the compressed
// payload.  Protocol constant; changing it breaks every published token.
const styleSep = "\x00"

var (
	// ErrReservedByte reports content that contains the NUL delimiter and
	// therefore cannot be encoded.
	ErrReservedByte = errors.New("codec: content contains reserved NUL byte")

	// ErrMalformedToken reports a token that cannot be base64-decoded or
	// inflated.  Never retried; always surfaced.
	ErrMalformedToken = errors.New("codec: malformed token")
)

// Compress deflates text and returns an unpadded base64url token.
func Compress(text string) (string, error) {
	return CompressWithStyle(text, "")
}

// CompressWithStyle encodes content plus an optional style string into one
// token.  An empty style produces the same token as Compress.
func CompressWithStyle(text, style string) (string, error) {
	if strings.Contains(text, styleSep) {
		return "", ErrReservedByte
	}
	if strings.Contains(style, styleSep) {
		return "", ErrReservedByte
	}

	payload := text
	if style != "" {
		payload = text + styleSep + style
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("codec: deflate init: %w", err)
	}
	if _, err := io.WriteString(zw, payload); err != nil {
		return "", fmt.Errorf("codec: deflate write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("codec: deflate close: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress is the exact inverse of Compress for the content portion.  Any
// embedded style survives untouched inside the returned string; callers that
// care about style use DecompressWithStyle.
func Decompress(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(normalize(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	zr := flate.NewReader(bytes.NewReader(raw))
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return string(out), nil
}

// DecompressWithStyle splits the inflated payload on the reserved delimiter.
// Style is empty when no delimiter was present.
func DecompressWithStyle(token string) (text, style string, err error) {
	data, err := Decompress(token)
	if err != nil {
		return "", "", err
	}
	if i := strings.Index(data, styleSep); i >= 0 {
		return data[:i], data[i+1:], nil
	}
	return data, "", nil
}

// normalize accepts tokens produced by standard-alphabet encoders: '+' and
// '/' are mapped to their URL-safe forms and padding is stripped.
func normalize(token string) string {
	token = strings.TrimRight(token, "=")
	token = strings.ReplaceAll(token, "+", "-")
	return strings.ReplaceAll(token, "/", "_")
}

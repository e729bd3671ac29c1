package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"

	"golang.org/x/image/draw"

	// Register decoders for the formats we accept.
	_ "image/gif"
)

const (
	// InlineByteCap is the maximum raw (decoded) size an inline image may
	// contribute to a request payload, estimated from base64 text via
	// EstimateDecodedSize.
	InlineByteCap = 900_000

	// directReadThreshold: raw files comfortably under the cap are passed
	// through without recompression.
	directReadThreshold = InlineByteCap * 7 / 10
)

// dimensionLadder is the fixed ladder of maximum pixel dimensions tried when
// the direct read is too large, largest first.
var dimensionLadder = []int{1600, 1280, 1024, 720, 512}

// qualityLadder is the fixed ladder of JPEG qualities tried per dimension.
var qualityLadder = []int{88, 75, 65, 50}

// InlineImage is a size-bounded inline representation of an image.
type InlineImage struct {
	Data     string `json:"data"` // base64
	MimeType string `json:"mime_type"`
}

// EstimatedBytes returns the byte estimate for the encoded data, computed
// from the base64 text length accounting for padding characters.
func (img InlineImage) EstimatedBytes() int {
	return EstimateDecodedSize(img.Data)
}

// EstimateDecodedSize estimates the decoded byte count of a base64 string
// without decoding it.
func EstimateDecodedSize(b64 string) int {
	n := len(b64)
	if n == 0 {
		return 0
	}
	padding := 0
	for i := n - 1; i >= 0 && b64[i] == '='; i-- {
		padding++
	}
	return n*3/4 - padding
}

// Transcode converts an in-memory image file into an inline representation
// whose raw size is at or below InlineByteCap, or the best-effort smallest
// encoding obtained if the cap cannot be met. The cap is counted in raw
// bytes, the same measure EstimatedBytes reports.
//
// Files already comfortably under the cap are passed through unmodified.
// Otherwise each dimension of the ladder is tried against each encoding of
// the quality ladder (original format preferred for PNG sources) and the
// first candidate under the cap wins. Input that cannot be decoded at all
// falls back to the unmodified direct read.
func Transcode(src []byte, mimeType string) (InlineImage, error) {
	direct := InlineImage{
		Data:     base64.StdEncoding.EncodeToString(src),
		MimeType: mimeType,
	}

	if len(src) <= directReadThreshold {
		return direct, nil
	}

	decoded, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		log.Printf("[Transcoder] Could not decode %s input (%d bytes), returning direct read: %v", mimeType, len(src), err)
		return direct, nil
	}

	preferPNG := format == "png"

	// Track the global minimum across all attempts for the best-effort path.
	best := direct
	bestSize := len(src)

	bounds := decoded.Bounds()
	srcMax := bounds.Dx()
	if bounds.Dy() > srcMax {
		srcMax = bounds.Dy()
	}

	var buf bytes.Buffer
	prevDim := 0
	for _, maxDim := range dimensionLadder {
		dim := maxDim
		if dim > srcMax {
			dim = srcMax
		}
		if dim == prevDim {
			continue // source smaller than the ladder step, already tried
		}
		prevDim = dim

		scaled := downscale(decoded, dim)

		candidates := make([]encoding, 0, 1+len(qualityLadder))
		if preferPNG {
			candidates = append(candidates, encoding{mime: "image/png"})
		}
		for _, q := range qualityLadder {
			candidates = append(candidates, encoding{mime: "image/jpeg", quality: q})
		}

		for _, enc := range candidates {
			buf.Reset()
			if err := enc.encode(&buf, scaled); err != nil {
				return InlineImage{}, fmt.Errorf("encoding %s candidate at dim %d: %w", enc.mime, dim, err)
			}

			size := buf.Len()
			if size < bestSize {
				bestSize = size
				best = InlineImage{
					Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
					MimeType: enc.mime,
				}
			}
			if size <= InlineByteCap {
				return InlineImage{
					Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
					MimeType: enc.mime,
				}, nil
			}
		}
	}

	log.Printf("[Transcoder] Cap not met after full ladder, returning smallest candidate (%d bytes, %s)", bestSize, best.MimeType)
	return best, nil
}

type encoding struct {
	mime    string
	quality int // JPEG only
}

func (e encoding) encode(buf *bytes.Buffer, img image.Image) error {
	if e.mime == "image/png" {
		return png.Encode(buf, img)
	}
	return jpeg.Encode(buf, img, &jpeg.Options{Quality: e.quality})
}

// downscale scales img so that its larger dimension equals maxDim, preserving
// aspect ratio. The scratch RGBA is local to the call so repeated transcodes
// do not accumulate buffers.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Box describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// IsEmpty reports whether the box has non-positive dimensions.
func (b Box) IsEmpty() bool { return b.Width <= 0 || b.Height <= 0 }

// Input encapsulates a single image submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier that is echoed back in the
	// corresponding Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// Width and Height carry the raster dimensions in pixels; engines use
	// them to validate token geometry.
	Width  int
	Height int
	// DPI carries the effective dots-per-inch for the image. Providers such as
	// Tesseract use this for scaling and layout heuristics; zero means unknown.
	DPI int
	// Languages is a list of language hints (e.g., "eng", "deu") that
	// providers can use to select trained data.
	Languages []string
	// Metadata allows callers to pass through engine-specific knobs (e.g.,
	// "tessedit_pageseg_mode" for Tesseract) without hard-coding them into the
	// API surface.
	Metadata map[string]string
}

// Token represents a single recognized text fragment, typically a word.
type Token struct {
	Text string
	// Bounds locates the token in source-raster pixel coordinates.
	Bounds Box
	// Confidence is the engine's certainty for this token in [0, 100].
	Confidence float64
}

// Result captures recognition output for a single input image. Zero tokens
// with empty text is a valid result meaning no text was found.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// Text contains the linearized text extracted from the image.
	Text string
	// Tokens carries the recognized fragments in engine order.
	Tokens []Token
	// MeanConfidence averages the token confidences; zero when no tokens.
	MeanConfidence float64
	// Language indicates the dominant language used, if known.
	Language string
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// Pinger is implemented by engines that can report reachability, used by
// health checks to gate traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

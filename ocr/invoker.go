package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/wudi/ocrkit/raster"
)

// DefaultTimeout bounds an engine invocation when the caller supplies none.
const DefaultTimeout = 10 * time.Second

// ErrTimeout reports that the engine did not complete within the configured
// timeout. The in-flight invocation is cancelled and no partial result is
// returned.
var ErrTimeout = errors.New("ocr: recognition timed out")

// EngineError carries a diagnostic reported by the OCR engine itself, as
// opposed to a fault in the surrounding pipeline.
type EngineError struct {
	Engine  string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ocr: engine %s: %s", e.Engine, e.Message)
}

// Recognize encodes the raster, invokes the engine, and enforces the timeout.
// Engines that honor context cancellation (subprocess-backed ones) are killed
// on expiry; engines stuck in a native call are abandoned behind the watchdog
// and release their resources when the call returns.
func Recognize(ctx context.Context, engine Engine, img *raster.Image, timeout time.Duration, opts ...InputOption) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Data); err != nil {
		return Result{}, fmt.Errorf("encode raster: %w", err)
	}
	in := Input{
		Image:  buf.Bytes(),
		Format: ImageFormatPNG,
		Width:  img.Width,
		Height: img.Height,
	}
	for _, opt := range opts {
		opt(&in)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := engine.Recognize(ctx, in)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return Result{}, ctx.Err()
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return Result{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			var engineErr *EngineError
			if errors.As(out.err, &engineErr) {
				return Result{}, out.err
			}
			return Result{}, &EngineError{Engine: engine.Name(), Message: out.err.Error()}
		}
		return normalize(out.res, img), nil
	}
}

// normalize enforces the result invariants: confidences in [0, 100], token
// boxes within the raster, mean confidence derived from the token set.
func normalize(res Result, img *raster.Image) Result {
	var sum float64
	for i := range res.Tokens {
		tok := &res.Tokens[i]
		tok.Confidence = clamp(tok.Confidence, 0, 100)
		tok.Bounds = clampBox(tok.Bounds, img.Width, img.Height)
		sum += tok.Confidence
	}
	if len(res.Tokens) == 0 {
		res.MeanConfidence = 0
	} else {
		res.MeanConfidence = sum / float64(len(res.Tokens))
	}
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampBox(b Box, width, height int) Box {
	if b.X < 0 {
		b.Width += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.Height += b.Y
		b.Y = 0
	}
	if b.X+b.Width > width {
		b.Width = width - b.X
	}
	if b.Y+b.Height > height {
		b.Height = height - b.Y
	}
	if b.Width < 0 {
		b.Width = 0
	}
	if b.Height < 0 {
		b.Height = 0
	}
	return b
}

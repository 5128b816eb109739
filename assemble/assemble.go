// Package assemble turns an engine result into the wire payload. Filtering
// and text regeneration happen together so the token list and the full text
// always describe the same set of words.
package assemble

import (
	"strings"

	"github.com/wudi/ocrkit/ocr"
)

// Format selects the response shape.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options controls payload construction.
type Options struct {
	// MinConfidence drops tokens below this confidence (0-100 scale).
	MinConfidence float64
	// Format selects plain text or the structured payload.
	Format Format
}

// TokenPayload is the wire form of a recognized token.
type TokenPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Payload is the assembled response body. Tokens is nil for FormatText.
type Payload struct {
	Text           string         `json:"text"`
	MeanConfidence float64        `json:"mean_confidence"`
	Language       string         `json:"language,omitempty"`
	Tokens         []TokenPayload `json:"tokens,omitempty"`
}

// Build filters the result and regenerates the full text from the kept
// tokens, preserving engine order. It never fails: an empty result yields an
// empty but valid payload.
func Build(res ocr.Result, opts Options) Payload {
	kept := make([]ocr.Token, 0, len(res.Tokens))
	for _, tok := range res.Tokens {
		if tok.Confidence >= opts.MinConfidence {
			kept = append(kept, tok)
		}
	}

	payload := Payload{
		Text:           joinText(res, kept, opts.MinConfidence),
		MeanConfidence: meanConfidence(kept),
		Language:       res.Language,
	}
	if opts.Format == FormatJSON {
		payload.Tokens = make([]TokenPayload, 0, len(kept))
		for _, tok := range kept {
			payload.Tokens = append(payload.Tokens, TokenPayload{
				Text:       tok.Text,
				Confidence: tok.Confidence,
				X:          tok.Bounds.X,
				Y:          tok.Bounds.Y,
				Width:      tok.Bounds.Width,
				Height:     tok.Bounds.Height,
			})
		}
	}
	return payload
}

func joinText(res ocr.Result, kept []ocr.Token, minConfidence float64) string {
	if len(kept) > 0 {
		parts := make([]string, 0, len(kept))
		for _, tok := range kept {
			parts = append(parts, tok.Text)
		}
		return strings.Join(parts, " ")
	}
	// Engines without word geometry report plain text only; it survives
	// unfiltered solely when no confidence floor is requested.
	if len(res.Tokens) == 0 && minConfidence <= 0 {
		return normalizeWhitespace(res.Text)
	}
	return ""
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func meanConfidence(tokens []ocr.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, tok := range tokens {
		sum += tok.Confidence
	}
	return sum / float64(len(tokens))
}

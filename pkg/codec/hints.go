package codec

import "fmt"

// HintColorSpace carries a color encoding description, for example
// "RGB_D65_SRG_Rel_Lin"
const HintColorSpace = "color_space"

type keyValue struct {
	key, value string
}

// DecoderHints are ordered key value pairs for decoders of formats that
// lack color space metadata
type DecoderHints struct {
	kv []keyValue
}

// Add appends a hint; duplicates are kept in order
func (h *DecoderHints) Add(key, value string) {
	h.kv = append(h.kv, keyValue{key: key, value: value})
}

// Len is the number of hints
func (h *DecoderHints) Len() int { return len(h.kv) }

// Foreach calls fn in insertion order and stops at the first error
func (h *DecoderHints) Foreach(fn func(key, value string) error) error {
	for _, kv := range h.kv {
		if err := fn(kv.key, kv.value); err != nil {
			return fmt.Errorf("decoder hint %s=%s: %w", kv.key, kv.value, err)
		}
	}
	return nil
}

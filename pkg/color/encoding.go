// Package color describes pixel color encodings and converts planar samples
// between the encodings that need no ICC profile math.
package color

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownDescription signals a color description that cannot be parsed
var ErrUnknownDescription = errors.New("unknown color description")

// ColorSpace of the samples
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceGray
	ColorSpaceXYB
	ColorSpaceUnknown
)

// WhitePoint of the encoding
type WhitePoint int

const (
	WhitePointD65 WhitePoint = iota
	WhitePointCustom
	WhitePointE
	WhitePointDCI
)

// Primaries of the encoding, ignored for gray
type Primaries int

const (
	PrimariesSRGB Primaries = iota
	PrimariesCustom
	Primaries2100
	PrimariesP3
)

// TransferFunction maps encoded samples to linear light
type TransferFunction int

const (
	TransferSRGB TransferFunction = iota
	TransferLinear
	TransferBT709
	TransferPQ
	TransferHLG
	TransferDCI
	TransferGamma
	TransferUnknown
)

// RenderingIntent for gamut mapping
type RenderingIntent int

const (
	IntentPerceptual RenderingIntent = iota
	IntentRelative
	IntentSaturation
	IntentAbsolute
)

// Encoding fully describes how samples are to be interpreted
type Encoding struct {
	ColorSpace ColorSpace
	WhitePoint WhitePoint
	Primaries  Primaries
	Transfer   TransferFunction
	Gamma      float64 // only for TransferGamma, encoded = linear^Gamma
	Intent     RenderingIntent

	// ICC carries an externally supplied profile, if any
	ICC []byte
}

// SRGB returns the sRGB (or sGray) encoding
func SRGB(gray bool) Encoding {
	e := Encoding{WhitePoint: WhitePointD65, Primaries: PrimariesSRGB, Transfer: TransferSRGB, Intent: IntentPerceptual}
	if gray {
		e.ColorSpace = ColorSpaceGray
	}
	return e
}

// LinearSRGB returns sRGB primaries with a linear transfer function
func LinearSRGB(gray bool) Encoding {
	e := SRGB(gray)
	e.Transfer = TransferLinear
	return e
}

// IsGray returns true for single channel encodings
func (e Encoding) IsGray() bool {
	return e.ColorSpace == ColorSpaceGray
}

// IsSRGB returns true for sRGB (not gray)
func (e Encoding) IsSRGB() bool {
	return e.ColorSpace == ColorSpaceRGB && e.WhitePoint == WhitePointD65 &&
		e.Primaries == PrimariesSRGB && e.Transfer == TransferSRGB
}

// IsLinearSRGB returns true for linear sRGB (not gray)
func (e Encoding) IsLinearSRGB() bool {
	return e.ColorSpace == ColorSpaceRGB && e.WhitePoint == WhitePointD65 &&
		e.Primaries == PrimariesSRGB && e.Transfer == TransferLinear
}

// HasProfile returns true if the encoding is usable without further input
func (e Encoding) HasProfile() bool {
	if len(e.ICC) != 0 {
		return true
	}
	return e.ColorSpace != ColorSpaceUnknown && e.WhitePoint != WhitePointCustom &&
		e.Primaries != PrimariesCustom && e.Transfer != TransferUnknown
}

// SameColorEncoding ignores the rendering intent, which does not change samples
func (e Encoding) SameColorEncoding(o Encoding) bool {
	if e.ColorSpace != o.ColorSpace || e.WhitePoint != o.WhitePoint || e.Transfer != o.Transfer {
		return false
	}
	if e.Transfer == TransferGamma && e.Gamma != o.Gamma {
		return false
	}
	if !e.IsGray() && e.Primaries != o.Primaries {
		return false
	}
	return bytes.Equal(e.ICC, o.ICC)
}

var (
	colorSpaceNames = map[ColorSpace]string{ColorSpaceRGB: "RGB", ColorSpaceGray: "Gra", ColorSpaceXYB: "XYB", ColorSpaceUnknown: "CS?"}
	whitePointNames = map[WhitePoint]string{WhitePointD65: "D65", WhitePointCustom: "Cst", WhitePointE: "EER", WhitePointDCI: "DCI"}
	primariesNames  = map[Primaries]string{PrimariesSRGB: "SRG", PrimariesCustom: "Cst", Primaries2100: "202", PrimariesP3: "DCI"}
	transferNames   = map[TransferFunction]string{
		TransferSRGB: "SRG", TransferLinear: "Lin", TransferBT709: "709", TransferPQ: "PeQ",
		TransferHLG: "HLG", TransferDCI: "DCI", TransferUnknown: "TF?",
	}
	intentNames = map[RenderingIntent]string{IntentPerceptual: "Per", IntentRelative: "Rel", IntentSaturation: "Sat", IntentAbsolute: "Abs"}
)

// Description returns the compact form, e.g. RGB_D65_SRG_Rel_SRG or Gra_D65_Rel_Lin
func (e Encoding) Description() string {
	parts := []string{colorSpaceNames[e.ColorSpace], whitePointNames[e.WhitePoint]}
	if !e.IsGray() {
		parts = append(parts, primariesNames[e.Primaries])
	}
	parts = append(parts, intentNames[e.Intent])
	if e.Transfer == TransferGamma {
		parts = append(parts, "g"+strconv.FormatFloat(e.Gamma, 'f', -1, 64))
	} else {
		parts = append(parts, transferNames[e.Transfer])
	}
	return strings.Join(parts, "_")
}

func (e Encoding) String() string {
	return e.Description()
}

func lookup[K comparable](names map[K]string, s string) (K, bool) {
	for k, v := range names {
		if v == s {
			return k, true
		}
	}
	var zero K
	return zero, false
}

// ParseDescription is the inverse of Description. "sRGB", "LinearSRGB" and
// "Gray" are accepted as shorthands.
func ParseDescription(desc string) (Encoding, error) {
	switch desc {
	case "sRGB", "srgb":
		return SRGB(false), nil
	case "LinearSRGB", "linear":
		return LinearSRGB(false), nil
	case "Gray", "gray":
		return SRGB(true), nil
	}

	parts := strings.Split(desc, "_")
	if len(parts) < 4 {
		return Encoding{}, fmt.Errorf("%w: %q", ErrUnknownDescription, desc)
	}
	var e Encoding
	var ok bool
	if e.ColorSpace, ok = lookup(colorSpaceNames, parts[0]); !ok {
		return Encoding{}, fmt.Errorf("%w: color space %q", ErrUnknownDescription, parts[0])
	}
	if e.WhitePoint, ok = lookup(whitePointNames, parts[1]); !ok {
		return Encoding{}, fmt.Errorf("%w: white point %q", ErrUnknownDescription, parts[1])
	}
	rest := parts[2:]
	if !e.IsGray() {
		if len(rest) != 3 {
			return Encoding{}, fmt.Errorf("%w: %q", ErrUnknownDescription, desc)
		}
		if e.Primaries, ok = lookup(primariesNames, rest[0]); !ok {
			return Encoding{}, fmt.Errorf("%w: primaries %q", ErrUnknownDescription, rest[0])
		}
		rest = rest[1:]
	} else if len(rest) != 2 {
		return Encoding{}, fmt.Errorf("%w: %q", ErrUnknownDescription, desc)
	}
	if e.Intent, ok = lookup(intentNames, rest[0]); !ok {
		return Encoding{}, fmt.Errorf("%w: rendering intent %q", ErrUnknownDescription, rest[0])
	}
	tf := rest[1]
	if strings.HasPrefix(tf, "g") {
		g, err := strconv.ParseFloat(tf[1:], 64)
		if err != nil || g <= 0 || g > 1 {
			return Encoding{}, fmt.Errorf("%w: gamma %q", ErrUnknownDescription, tf)
		}
		e.Transfer = TransferGamma
		e.Gamma = g
		return e, nil
	}
	if e.Transfer, ok = lookup(transferNames, tf); !ok {
		return Encoding{}, fmt.Errorf("%w: transfer function %q", ErrUnknownDescription, tf)
	}
	return e, nil
}

package frame

import (
	"errors"
	"fmt"
	"strings"
)

// Rule names the constraint a ValidationError violates
type Rule int

const (
	RuleReferenceOrigin Rule = iota + 1
	RuleBlendSource
	RuleDCFrame
	RuleSaveBefore
	RuleAlphaChannel
	RulePassLayout
	RuleColorTransform
)

func (r Rule) String() string {
	switch r {
	case RuleReferenceOrigin:
		return "reference-origin"
	case RuleBlendSource:
		return "blend-source"
	case RuleDCFrame:
		return "dc-frame"
	case RuleSaveBefore:
		return "save-before-color-transform"
	case RuleAlphaChannel:
		return "alpha-channel"
	case RulePassLayout:
		return "passes"
	case RuleColorTransform:
		return "color-transform"
	default:
		return "unknown"
	}
}

// ValidationError is a single constraint violation
type ValidationError struct {
	Rule       Rule
	Message    string
	IsCritical bool // critical violations make the frame undecodable
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// ValidationResult collects the violations of one header
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no critical errors
func (r ValidationResult) IsValid() bool {
	for _, err := range r.Errors {
		if err.IsCritical {
			return false
		}
	}
	return true
}

// HasErrors returns true if there are any errors
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err joins all errors, nil when there are none
func (r ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r ValidationResult) String() string {
	var sb strings.Builder
	for _, e := range r.Errors {
		sb.WriteString("error: " + e.Error() + "\n")
	}
	for _, w := range r.Warnings {
		sb.WriteString("warning: " + w.Error() + "\n")
	}
	return sb.String()
}

func (r *ValidationResult) fail(rule Rule, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...), IsCritical: true})
}

func (r *ValidationResult) warn(rule Rule, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the composition constraints the bitstream layout alone
// does not enforce
func Validate(h *Header) ValidationResult {
	result := ValidationResult{}

	if h.Type == TypeReferenceOnly && (h.FrameOrigin.X0 != 0 || h.FrameOrigin.Y0 != 0) {
		result.fail(RuleReferenceOrigin, "reference only frame at origin (%d,%d)", h.FrameOrigin.X0, h.FrameOrigin.Y0)
	}

	if h.Type == TypeDC {
		if h.DCLevel < 1 || h.DCLevel > 4 {
			result.fail(RuleDCFrame, "dc level %d outside 1-4", h.DCLevel)
		}
		if h.CustomSizeOrOrigin {
			result.fail(RuleDCFrame, "dc frames cannot be cropped")
		}
		if !h.SaveBeforeColorTransform {
			result.fail(RuleSaveBefore, "dc frames are saved before the color transform")
		}
	} else if h.DCLevel != 0 {
		result.fail(RuleDCFrame, "dc level %d on a %s frame", h.DCLevel, h.Type)
	}

	for i, b := range append([]BlendingInfo{h.Blending}, h.ExtraChannelBlending...) {
		if h.Type != TypeRegular {
			break
		}
		name := "color"
		if i > 0 {
			name = fmt.Sprintf("extra channel %d", i-1)
		}
		if b.Source >= NumReferenceSlots {
			result.fail(RuleBlendSource, "%s blends from slot %d", name, b.Source)
		}
		if b.Mode.UsesAlpha() && int(b.AlphaChannel) >= max(h.numExtraChannels(), 1) {
			result.fail(RuleAlphaChannel, "%s uses alpha channel %d of %d", name, b.AlphaChannel, h.numExtraChannels())
		}
		if b.Mode == BlendReplace && b.Source != 0 && !h.IsPartial() {
			result.warn(RuleBlendSource, "%s replaces the full frame, source %d is ignored", name, b.Source)
		}
	}

	if h.SaveAsReference >= NumReferenceSlots {
		result.fail(RuleBlendSource, "save as reference slot %d", h.SaveAsReference)
	}
	if h.Type == TypeRegular && h.SaveBeforeColorTransform &&
		(h.Blending.Mode != BlendReplace || h.IsPartial() || !h.CanBeReferenced()) {
		result.fail(RuleSaveBefore, "only full, replacing, referenced frames may be saved before the color transform")
	}
	if h.Blending.Mode == BlendMul && h.ColorTransform != ColorTransformNone {
		result.warn(RuleColorTransform, "mul blended color skips the %s transform", h.ColorTransform)
	}

	p := h.Passes
	if h.Type != TypeReferenceOnly {
		for i := uint32(1); i < p.NumDownsample; i++ {
			if p.Downsample[i] >= p.Downsample[i-1] {
				result.fail(RulePassLayout, "downsample factors not decreasing at stage %d", i)
			}
			if p.LastPass[i] <= p.LastPass[i-1] {
				result.fail(RulePassLayout, "last pass not increasing at stage %d", i)
			}
		}
	}

	if h.Type == TypeRegular && h.IsPreview() && (h.CustomSizeOrOrigin || h.Blending.Mode != BlendReplace) {
		result.fail(RuleBlendSource, "preview frame is blended or cropped")
	}
	return result
}

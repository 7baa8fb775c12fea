package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/frame"
	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/util"
	"github.com/spf13/cobra"
)

type frameReport struct {
	Index       int    `json:"index"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Encoding    string `json:"encoding"`
	Flags       uint64 `json:"flags,omitempty"`

	X0      int32  `json:"x0"`
	Y0      int32  `json:"y0"`
	XSize   uint64 `json:"xsize"`
	YSize   uint64 `json:"ysize"`
	Groups  uint64 `json:"groups"`
	Partial bool   `json:"partial"`

	Blend    string `json:"blend"`
	Source   uint32 `json:"source"`
	Duration uint32 `json:"duration,omitempty"`

	IsLast          bool   `json:"is_last"`
	SaveAsReference uint32 `json:"save_as_reference"`
	Referenced      bool   `json:"referenced"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type streamReport struct {
	XSize         uint64        `json:"xsize"`
	YSize         uint64        `json:"ysize"`
	Animated      bool          `json:"animated"`
	ExtraChannels int           `json:"extra_channels"`
	ColorEncoding string        `json:"color_encoding"`
	Frames        []frameReport `json:"frames"`
}

// inspectHeaders decodes codestream headers and every byte aligned frame
// header up to the last one or the end of data
func inspectHeaders(data []byte) (*streamReport, error) {
	data, err := util.MaybeDecompress(data)
	if err != nil {
		return nil, err
	}
	r := bitio.NewBitReader(data)
	md, err := headers.ReadCodestreamHeaders(r)
	if err != nil {
		return nil, err
	}
	rep := &streamReport{
		XSize:         md.XSize(),
		YSize:         md.YSize(),
		Animated:      md.M.HaveAnimation,
		ExtraChannels: md.M.NumExtraChannels(),
		ColorEncoding: md.M.ColorEncoding().Description(),
	}
	for i := 0; r.Remaining() > 0; i++ {
		h := frame.New(md)
		if err := frame.ReadFrameHeader(r, h); err != nil {
			return rep, fmt.Errorf("frame %d: %w", i, err)
		}
		r.JumpToByteBoundary()
		rep.Frames = append(rep.Frames, reportFrame(i, h))
		if h.IsLast {
			break
		}
	}
	return rep, nil
}

func reportFrame(i int, h *frame.Header) frameReport {
	dims := h.ToFrameDimensions()
	fr := frameReport{
		Index:           i,
		Fingerprint:     util.HashUUID(h),
		Name:            h.Label,
		Type:            h.Type.String(),
		Encoding:        h.Encoding.String(),
		Flags:           h.Flags,
		X0:              h.FrameOrigin.X0,
		Y0:              h.FrameOrigin.Y0,
		XSize:           dims.XSizeUpsampled,
		YSize:           dims.YSizeUpsampled,
		Groups:          dims.NumGroups,
		Partial:         h.IsPartial(),
		Blend:           h.Blending.Mode.String(),
		Source:          h.Blending.Source,
		Duration:        h.Animation.Duration,
		IsLast:          h.IsLast,
		SaveAsReference: h.SaveAsReference,
		Referenced:      h.CanBeReferenced(),
	}
	res := frame.Validate(h)
	for _, e := range res.Errors {
		fr.Errors = append(fr.Errors, e.Error())
	}
	for _, w := range res.Warnings {
		fr.Warnings = append(fr.Warnings, w.Error())
	}
	return fr
}

func writeReport(w io.Writer, rep *streamReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(w, "%dx%d %s extra_channels=%d animated=%t\n",
		rep.XSize, rep.YSize, rep.ColorEncoding, rep.ExtraChannels, rep.Animated)
	for _, f := range rep.Frames {
		fmt.Fprintf(w, "frame %d %s %s %s %dx%d@(%d,%d) blend=%s source=%d save=%d last=%t\n",
			f.Index, f.Fingerprint, f.Type, f.Encoding, f.XSize, f.YSize, f.X0, f.Y0,
			f.Blend, f.Source, f.SaveAsReference, f.IsLast)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "\terror: %s\n", e)
		}
		for _, e := range f.Warnings {
			fmt.Fprintf(w, "\twarning: %s\n", e)
		}
	}
	return nil
}

func NewInspectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "decode and validate frame headers",
		Long:  "decode the codestream headers and frame headers of a header dump, optionally zstd framed, and report each frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			asJSON, _ := cmd.Flags().GetBool("json")
			data, err := openInput(in)
			if err != nil {
				return err
			}
			rep, err := inspectHeaders(data)
			if err != nil {
				slog.ErrorContext(ctx, "failed to decode headers", slog.String("in", in), slog.Any("error", err))
				if rep == nil {
					return err
				}
			}
			if werr := writeReport(cmd.OutOrStdout(), rep, asJSON); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringP("in", "i", "-", "header dump to read")
	cmd.Flags().Bool("json", false, "report as JSON")
	return cmd
}

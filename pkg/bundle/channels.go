package bundle

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/headers"
	"github.com/jpfielding/jxlmeta.go/pkg/image"
)

// channelIndex finds the metadata slot of the first channel of type t
func (ib *ImageBundle) channelIndex(t headers.ExtraChannelType) (int, error) {
	for i, ec := range ib.metadata.ExtraChannels {
		if ec.Type == t {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: no %s channel declared", ErrMetadataMismatch, t)
}

func (ib *ImageBundle) setChannel(i int, p *image.ImageF) error {
	if p.XSize() == 0 || p.YSize() == 0 {
		return fmt.Errorf("%w: empty extra channel %d", ErrSizeMismatch, i)
	}
	if len(ib.extra) != ib.metadata.NumExtraChannels() {
		ib.extra = make([]*image.ImageF, ib.metadata.NumExtraChannels())
		// channels other than i start out empty at the channel size
		for j := range ib.extra {
			if j != i {
				info := ib.metadata.ExtraChannels[j]
				ib.extra[j] = image.NewPlane[float32](int(info.Size(uint64(ib.XSize()))), int(info.Size(uint64(ib.YSize()))))
			}
		}
	}
	ib.extra[i] = p
	return ib.VerifySizes()
}

// HasAlpha reports whether the metadata declares alpha
func (ib *ImageBundle) HasAlpha() bool { return ib.metadata.HasAlpha() }

// AlphaIsPremultiplied is looked up from the metadata, never stored here
func (ib *ImageBundle) AlphaIsPremultiplied() bool {
	if ec := ib.metadata.Find(headers.ExtraChannelAlpha); ec != nil {
		return ec.AlphaAssociated
	}
	return false
}

// SetAlpha installs alpha. The metadata must declare an alpha channel with
// the same association.
func (ib *ImageBundle) SetAlpha(alpha *image.ImageF, premultiplied bool) error {
	i, err := ib.channelIndex(headers.ExtraChannelAlpha)
	if err != nil {
		return err
	}
	if ib.metadata.ExtraChannels[i].AlphaAssociated != premultiplied {
		return fmt.Errorf("%w: alpha premultiplied %t, metadata says %t", ErrMetadataMismatch, premultiplied, !premultiplied)
	}
	return ib.setChannel(i, alpha)
}

// Alpha returns the alpha raster, nil when absent
func (ib *ImageBundle) Alpha() *image.ImageF {
	return ib.channel(headers.ExtraChannelAlpha)
}

func (ib *ImageBundle) channel(t headers.ExtraChannelType) *image.ImageF {
	i, err := ib.channelIndex(t)
	if err != nil || i >= len(ib.extra) {
		return nil
	}
	return ib.extra[i]
}

// HasDepth reports whether the metadata declares depth
func (ib *ImageBundle) HasDepth() bool {
	return ib.metadata.Find(headers.ExtraChannelDepth) != nil
}

// SetDepth installs the depth raster
func (ib *ImageBundle) SetDepth(depth *image.ImageF) error {
	i, err := ib.channelIndex(headers.ExtraChannelDepth)
	if err != nil {
		return err
	}
	return ib.setChannel(i, depth)
}

// Depth returns the depth raster, nil when absent
func (ib *ImageBundle) Depth() *image.ImageF {
	return ib.channel(headers.ExtraChannelDepth)
}

// DepthSize is the depth extent for an image extent of size
func (ib *ImageBundle) DepthSize(size uint64) uint64 {
	if ec := ib.metadata.Find(headers.ExtraChannelDepth); ec != nil {
		return ec.Size(size)
	}
	return 0
}

// SetExtraChannels installs one raster per declared extra channel
func (ib *ImageBundle) SetExtraChannels(planes []*image.ImageF) error {
	if len(planes) != ib.metadata.NumExtraChannels() {
		return fmt.Errorf("%w: %d extra channels, metadata declares %d", ErrMetadataMismatch, len(planes), ib.metadata.NumExtraChannels())
	}
	ib.extra = planes
	return ib.VerifySizes()
}

func (ib *ImageBundle) HasExtraChannels() bool { return len(ib.extra) != 0 }

// ExtraChannels are the rasters in metadata order
func (ib *ImageBundle) ExtraChannels() []*image.ImageF { return ib.extra }

package frame

const (
	// BlockDim is the side of a DCT block
	BlockDim = 8
	// GroupDim is the default group side
	GroupDim = 256
)

// DivCeil divides rounding up
func DivCeil(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// FrameDimensions are the sizes derived from a frame header
type FrameDimensions struct {
	// sizes before upsampling
	XSize, YSize uint64

	// sizes after upsampling
	XSizeUpsampled, YSizeUpsampled             uint64
	XSizeUpsampledPadded, YSizeUpsampledPadded uint64

	// padded to whole blocks, or unpadded for modular frames
	XSizePadded, YSizePadded uint64
	XSizeBlocks, YSizeBlocks uint64
	XSizeGroups, YSizeGroups uint64

	// DC groups cover GroupDim blocks each way
	XSizeDCGroups, YSizeDCGroups uint64
	NumGroups, NumDCGroups       uint64
	GroupDim, DCGroupDim         uint64
}

// Set derives every dimension from the upsampled frame size
func (d *FrameDimensions) Set(xsize, ysize uint64, groupSizeShift uint32, maxHShift, maxVShift int, modular bool, upsampling uint32) {
	up := uint64(max(upsampling, 1))
	d.GroupDim = (GroupDim >> 1) << groupSizeShift
	d.DCGroupDim = d.GroupDim * BlockDim
	d.XSizeUpsampled, d.YSizeUpsampled = xsize, ysize
	d.XSize, d.YSize = DivCeil(xsize, up), DivCeil(ysize, up)
	d.XSizeBlocks = DivCeil(d.XSize, BlockDim<<maxHShift) << maxHShift
	d.YSizeBlocks = DivCeil(d.YSize, BlockDim<<maxVShift) << maxVShift
	d.XSizePadded, d.YSizePadded = d.XSizeBlocks*BlockDim, d.YSizeBlocks*BlockDim
	if modular {
		d.XSizePadded, d.YSizePadded = d.XSize, d.YSize
	}
	d.XSizeUpsampledPadded, d.YSizeUpsampledPadded = d.XSizePadded*up, d.YSizePadded*up
	d.XSizeGroups, d.YSizeGroups = DivCeil(d.XSize, d.GroupDim), DivCeil(d.YSize, d.GroupDim)
	d.XSizeDCGroups, d.YSizeDCGroups = DivCeil(d.XSizeBlocks, d.GroupDim), DivCeil(d.YSizeBlocks, d.GroupDim)
	d.NumGroups = d.XSizeGroups * d.YSizeGroups
	d.NumDCGroups = d.XSizeDCGroups * d.YSizeDCGroups
}

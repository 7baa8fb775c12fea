package frame

import (
	"fmt"

	"github.com/jpfielding/jxlmeta.go/pkg/bitio"
	"github.com/jpfielding/jxlmeta.go/pkg/fields"
)

// NumOrders is the number of coefficient order kinds a pass may customize
const NumOrders = 13

// OrderEnc codes the mask of customized coefficient orders. 0x5F and 0x13
// are the masks most encoders emit; 0 keeps small images cheap.
var OrderEnc = fields.NewU32Enc(fields.Val(0x5F), fields.Val(0x13), fields.Val(0), fields.Bits(NumOrders))

// ReadUsedOrders decodes a used orders mask
func ReadUsedOrders(r *bitio.BitReader) (uint32, error) {
	return fields.ReadU32(r, OrderEnc)
}

// WriteUsedOrders encodes a used orders mask
func WriteUsedOrders(w *bitio.BitWriter, used uint32) error {
	if used>>NumOrders != 0 {
		return fmt.Errorf("%w: order mask %#x", fields.ErrOutOfRange, used)
	}
	return fields.WriteU32(w, OrderEnc, used)
}

// OrderUsed reports whether order kind ord is customized in mask used
func OrderUsed(used uint32, ord int) bool {
	return used&(1<<ord) != 0
}

package fields

import "fmt"

// MaxNameLength is the longest string VisitNameString can code
const MaxNameLength = 1071

// NameLengthEnc codes string lengths up to MaxNameLength
var NameLengthEnc = NewU32Enc(Val(0), Bits(4), BitsOffset(5, 16), BitsOffset(10, 48))

// VisitNameString visits a length-prefixed string of 8-bit characters.
// Also used by extra channel names.
func VisitNameString(v *Visitor, name *string) error {
	if v.Direction() == DirWrite && len(*name) > MaxNameLength {
		return fmt.Errorf("%w: name length %d > %d", ErrOutOfRange, len(*name), MaxNameLength)
	}
	length := uint32(len(*name))
	if err := v.U32(NameLengthEnc, 0, &length); err != nil {
		return err
	}
	buf := []byte(*name)
	if v.IsReading() || v.Direction() == DirSetDefault {
		buf = make([]byte, length)
	}
	for i := range buf {
		c := uint32(buf[i])
		if err := v.Bits(8, 0, &c); err != nil {
			return err
		}
		buf[i] = byte(c)
	}
	*name = string(buf)
	return nil
}

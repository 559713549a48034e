package spirv

import (
	"encoding/binary"
	"fmt"
	"iter"
)

const headerWords = 5

// Buffer is an encoded SPIR-V module: a header of five words followed by
// the instruction stream.
type Buffer []uint32

// Header is the decoded module header.
type Header struct {
	Magic     uint32
	Version   Version
	Generator uint32
	Bound     uint32
	Schema    uint32
}

// Header returns the module header. It is the zero Header when the
// buffer is too short.
func (buf Buffer) Header() Header {
	if len(buf) < headerWords {
		return Header{}
	}
	return Header{
		Magic:     buf[0],
		Version:   Version{Major: uint8(buf[1] >> 16), Minor: uint8(buf[1] >> 8)},
		Generator: buf[2],
		Bound:     buf[3],
		Schema:    buf[4],
	}
}

// Bytes returns the little-endian byte encoding of the module.
func (buf Buffer) Bytes() []byte {
	out := make([]byte, len(buf)*4)
	for i, w := range buf {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Instructions iterates the instruction stream. Iteration stops at the
// first malformed instruction, which is yielded as an error.
func (buf Buffer) Instructions() iter.Seq2[Instruction, error] {
	return func(yield func(Instruction, error) bool) {
		if len(buf) < headerWords {
			yield(Instruction{}, fmt.Errorf("spirv: module has %d words, want at least %d", len(buf), headerWords))
			return
		}
		for offset := headerWords; offset < len(buf); {
			word := buf[offset]
			count := int(word >> 16)
			if count == 0 || offset+count > len(buf) {
				yield(Instruction{}, fmt.Errorf("spirv: bad word count %d at word %d", count, offset))
				return
			}
			inst := Instruction{Opcode: OpCode(word & 0xFFFF), Words: buf[offset+1 : offset+count]}
			if !yield(inst, nil) {
				return
			}
			offset += count
		}
	}
}

// Decode reads a binary module in either byte order.
func Decode(data []byte) (Buffer, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("spirv: length %d is not a multiple of 4", len(data))
	}
	if len(data) < headerWords*4 {
		return nil, fmt.Errorf("spirv: module too small: %d bytes", len(data))
	}
	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(data) == MagicNumber:
	case binary.BigEndian.Uint32(data) == MagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("spirv: bad magic number 0x%08x", binary.LittleEndian.Uint32(data))
	}
	buf := make(Buffer, len(data)/4)
	for i := range buf {
		buf[i] = order.Uint32(data[i*4:])
	}
	for _, err := range buf.Instructions() {
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ResultID returns the result id of the instruction, if it has one.
func (i Instruction) ResultID() (uint32, bool) {
	switch i.Opcode.shape() {
	case resultOnly:
		if len(i.Words) > 0 {
			return i.Words[0], true
		}
	case typedResult:
		if len(i.Words) > 1 {
			return i.Words[1], true
		}
	}
	return 0, false
}

// DecodeString reads a null-terminated literal string starting at
// words[0]. It returns the string and the number of words consumed.
func DecodeString(words []uint32) (string, int) {
	var bytes []byte
	for n, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(bytes), n + 1
			}
			bytes = append(bytes, c)
		}
	}
	return string(bytes), len(words)
}

// ResultType returns the result type id of the instruction, if it has one.
func (i Instruction) ResultType() (uint32, bool) {
	if i.Opcode.shape() == typedResult && len(i.Words) > 1 {
		return i.Words[0], true
	}
	return 0, false
}

package wasmtest

// Code assembles a function body one instruction at a time.
type Code struct {
	b []byte
}

func (c *Code) op(b ...byte) *Code {
	c.b = append(c.b, b...)
	return c
}

func (c *Code) Unreachable() *Code       { return c.op(0x00) }
func (c *Code) Return() *Code            { return c.op(0x0f) }
func (c *Code) End() *Code               { return c.op(0x0b) }
func (c *Code) Br(depth uint32) *Code    { return c.op(0x0c).op(EncodeULEB128(depth)...) }
func (c *Code) Call(fn uint32) *Code     { return c.op(0x10).op(EncodeULEB128(fn)...) }
func (c *Code) LocalGet(i uint32) *Code  { return c.op(0x20).op(EncodeULEB128(i)...) }
func (c *Code) LocalSet(i uint32) *Code  { return c.op(0x21).op(EncodeULEB128(i)...) }
func (c *Code) LocalTee(i uint32) *Code  { return c.op(0x22).op(EncodeULEB128(i)...) }
func (c *Code) GlobalGet(i uint32) *Code { return c.op(0x23).op(EncodeULEB128(i)...) }
func (c *Code) GlobalSet(i uint32) *Code { return c.op(0x24).op(EncodeULEB128(i)...) }
func (c *Code) I32Const(v int32) *Code   { return c.op(0x41).op(EncodeSLEB128(v)...) }
func (c *Code) I32Eqz() *Code            { return c.op(0x45) }
func (c *Code) I32LtS() *Code            { return c.op(0x48) }
func (c *Code) I32GtS() *Code            { return c.op(0x4a) }
func (c *Code) I32GeU() *Code            { return c.op(0x4f) }
func (c *Code) I32Add() *Code            { return c.op(0x6a) }
func (c *Code) I32Sub() *Code            { return c.op(0x6b) }
func (c *Code) I32Mul() *Code            { return c.op(0x6c) }

// I32Load loads a 4-byte aligned word.
func (c *Code) I32Load() *Code { return c.op(0x28, 0x02, 0x00) }

// I32Store stores a 4-byte aligned word.
func (c *Code) I32Store() *Code { return c.op(0x36, 0x02, 0x00) }

// I32Store8 stores the low byte.
func (c *Code) I32Store8() *Code { return c.op(0x3a, 0x00, 0x00) }

// If opens a block with no result.
func (c *Code) If() *Code { return c.op(0x04, 0x40) }

// Loop opens a loop with no result.
func (c *Code) Loop() *Code { return c.op(0x03, 0x40) }

// TrapIf pops a condition and traps when it is non-zero.
func (c *Code) TrapIf() *Code { return c.If().Unreachable().End() }

// Bytes returns the instruction stream without the closing end.
func (c *Code) Bytes() []byte { return c.b }

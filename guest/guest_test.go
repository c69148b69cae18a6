package guest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndConsumeString(t *testing.T) {
	h := WriteString("round trip")

	s, err := ReadString(h)
	require.NoError(t, err)
	assert.Equal(t, "round trip", s)

	s, err = ConsumeString(h)
	require.NoError(t, err)
	assert.Equal(t, "round trip", s)

	_, err = ReadBuffer(h)
	require.ErrorIs(t, err, ErrUnknownBuffer)
}

func TestLogAndPanicFreeTheirBuffers(t *testing.T) {
	before, _ := Default().Stats()

	Log("hello host")
	Panic("not fatal here")

	after, _ := Default().Stats()
	assert.Equal(t, before, after, "the host side consumes the message buffers")
}

func TestFailPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		Fail("boom")
	})
}

func TestOnInit(t *testing.T) {
	called := 0
	OnInit(func() { called++ })
	t.Cleanup(func() { OnInit(nil) })

	runInit()
	assert.Equal(t, 1, called)
}

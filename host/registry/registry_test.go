package registry

import (
	"testing"

	"github.com/reglet-dev/membrane/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Builtins(t *testing.T) {
	assert.Empty(t, New().List())

	r := New(WithBuiltins())
	assert.Equal(t, []string{"application", "basic"}, r.List())

	p, ok := r.Get("basic")
	require.True(t, ok)
	assert.Equal(t, abi.Basic(), p)
}

func TestRegister(t *testing.T) {
	r := New(WithBuiltins())
	custom := abi.NewProfile("custom", "c_", abi.RoleAllocBuffer, abi.RoleGetBufferPtr, abi.RoleGetBufferLen, abi.RoleDeallocBuffer)

	require.NoError(t, r.Register(custom))
	assert.Equal(t, []string{"application", "basic", "custom"}, r.List())
	assert.Len(t, r.Profiles(), 3)

	err := r.Register(custom)
	assert.ErrorContains(t, err, `profile "custom" already registered`)
}

func TestRegister_NonStrictOverwrites(t *testing.T) {
	r := New(WithBuiltins(), WithStrictMode(false))
	p := abi.Basic()
	p.Version = 2

	require.NoError(t, r.Register(p))
	got, _ := r.Get("basic")
	assert.Equal(t, int32(2), got.Version)
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	err := r.Register(abi.Profile{Name: "broken"})
	assert.ErrorContains(t, err, "invalid profile")
	_, ok := r.Get("broken")
	assert.False(t, ok)
}

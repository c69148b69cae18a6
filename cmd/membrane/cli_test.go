package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/membrane/internal/wasmtest"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func writeGuest(t *testing.T, opts ...wasmtest.GuestOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guest.wasm")
	require.NoError(t, os.WriteFile(path, wasmtest.Guest(opts...), 0o600))
	return path
}

const hook = "membrane_guest_"

func TestRootCommand_Help(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "verify")
	assert.Contains(t, output, "call")
	assert.Contains(t, output, "profiles")
	assert.Contains(t, output, "schema")
}

func TestVerify_Compliant(t *testing.T) {
	path := writeGuest(t)

	output, err := executeCommand(newRootCmd(), "verify", path)
	require.NoError(t, err)
	assert.Contains(t, output, "guest.wasm (profile basic)")
	assert.Contains(t, output, "verified")
	assert.Contains(t, output, "membrane_guest_alloc_buffer( i32 ) -> i32")
	assert.Contains(t, output, "compliant")
	assert.NotContains(t, output, "NOT compliant")
	assert.NotContains(t, output, "\x1b[", "no escape codes off a terminal")
}

func TestVerify_NonCompliant(t *testing.T) {
	path := writeGuest(t, wasmtest.WithVersion(2), wasmtest.WithoutExport("alloc_buffer"))

	output, err := executeCommand(newRootCmd(), "verify", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compliant")
	assert.Contains(t, output, "NOT compliant")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "guest reports version 2")
}

func TestVerify_ProfileFlag(t *testing.T) {
	path := writeGuest(t)

	_, err := executeCommand(newRootCmd(), "verify", "--profile", "application", path)
	require.Error(t, err, "basic guest does not export the application names")
	assert.Contains(t, err.Error(), `profile "application"`)

	appPath := writeGuest(t, wasmtest.WithPrefix("membrane_app_"))
	output, err := executeCommand(newRootCmd(), "verify", "-p", "application", appPath)
	require.NoError(t, err)
	assert.Contains(t, output, "membrane_app_init()")
}

func TestVerify_UnknownProfile(t *testing.T) {
	path := writeGuest(t)
	_, err := executeCommand(newRootCmd(), "verify", "--profile", "nope", path)
	require.Error(t, err)
}

func TestVerify_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "membrane.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
profile: custom
profiles:
  - name: custom
    prefix: acme_
`), 0o600))
	path := writeGuest(t, wasmtest.WithPrefix("acme_"))

	output, err := executeCommand(newRootCmd(), "verify", "--config", cfgPath, path)
	require.NoError(t, err)
	assert.Contains(t, output, "(profile custom)")
	assert.Contains(t, output, "acme_version( ) -> i32")
}

func TestVerify_MissingFile(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "verify", filepath.Join(t.TempDir(), "absent.wasm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read module")
}

func TestVerify_RequiresArgument(t *testing.T) {
	_, err := executeCommand(newRootCmd(), "verify")
	require.Error(t, err)
}

func TestCall_StringArgument(t *testing.T) {
	path := writeGuest(t)

	output, err := executeCommand(newRootCmd(), "call", path, hook+wasmtest.HookEcho, "--string", "hello membrane")
	require.NoError(t, err)
	assert.Contains(t, output, "[guest] hello membrane")
	assert.Contains(t, output, "ok")
}

func TestCall_Results(t *testing.T) {
	path := writeGuest(t, wasmtest.WithVersion(7))

	output, err := executeCommand(newRootCmd(), "call", "--no-verify", path, hook+"version")
	require.NoError(t, err)
	assert.Contains(t, output, "result[0] = 7")
}

func TestCall_Stats(t *testing.T) {
	path := writeGuest(t)

	output, err := executeCommand(newRootCmd(), "call", path, hook+wasmtest.HookEcho, "-s", "abc", "--stats")
	require.NoError(t, err)
	assert.Contains(t, output, "membrane_bytes_written_total 20")
	assert.Contains(t, output, "membrane_guest_faults_total 0")
}

func TestCall_GuestLog(t *testing.T) {
	path := writeGuest(t)

	output, err := executeCommand(newRootCmd(), "call", path, hook+wasmtest.HookLog)
	require.NoError(t, err)
	assert.Contains(t, output, "[guest] "+wasmtest.LogMessage)
}

func TestCall_GuestPanic(t *testing.T) {
	path := writeGuest(t)

	output, err := executeCommand(newRootCmd(), "call", path, hook+wasmtest.HookPanic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guest panicked in "+hook+wasmtest.HookPanic)
	assert.Contains(t, err.Error(), wasmtest.PanicMessage)
	assert.Contains(t, output, "[panic] "+wasmtest.PanicMessage)
}

func TestCall_Timeout(t *testing.T) {
	path := writeGuest(t)

	_, err := executeCommand(newRootCmd(), "call", path, hook+wasmtest.HookEndless, "--timeout", "100ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 100ms")
}

func TestCall_UnknownExport(t *testing.T) {
	path := writeGuest(t)

	_, err := executeCommand(newRootCmd(), "call", path, "does_not_exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does_not_exist")
}

func TestCall_RefusesNonCompliant(t *testing.T) {
	path := writeGuest(t, wasmtest.WithVersion(9))

	_, err := executeCommand(newRootCmd(), "call", path, hook+"version")
	require.Error(t, err)

	output, err := executeCommand(newRootCmd(), "call", "--no-verify", path, hook+"version")
	require.NoError(t, err)
	assert.Contains(t, output, "result[0] = 9")
}

func TestProfiles(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "profiles")
	require.NoError(t, err)
	assert.Contains(t, output, "== basic ==")
	assert.Contains(t, output, "== application ==")
	assert.Contains(t, output, "membrane_app_init( )")
	assert.Contains(t, output, "membrane_host_log( i32 )")
	assert.Contains(t, output, "optional")
	assert.Contains(t, output, "required")
}

func TestSchema(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	assert.Contains(t, doc, "properties")
}

func TestNewStyler_PlainForNonTerminal(t *testing.T) {
	s := newStyler(new(bytes.Buffer), false)
	assert.False(t, s.color)
	assert.Equal(t, "text", s.render(failStyle, "text"))
	assert.Equal(t, "== t ==", s.title("t"))
}

package host_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/membrane/config"
	"github.com/reglet-dev/membrane/host"
	"github.com/reglet-dev/membrane/internal/wasmtest"
	"github.com/stretchr/testify/suite"
)

// LoaderIntegrationSuite tests the Loader with full integration.
type LoaderIntegrationSuite struct {
	suite.Suite
	ctx context.Context
	dir string
}

func (s *LoaderIntegrationSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
}

func (s *LoaderIntegrationSuite) write(name string, wasm []byte) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, wasm, 0o600))
	return path
}

func (s *LoaderIntegrationSuite) TestCompliantModule() {
	sink := &host.MemorySink{}
	loader := host.NewLoader(host.WithOptions(host.WithSink(sink)))

	m, report, err := loader.LoadFile(s.ctx, s.write("ok.wasm", wasmtest.Guest()))
	s.Require().NoError(err)
	defer m.Close(s.ctx)

	s.True(report.Passed())
	s.NotEmpty(sink.Messages(host.SourceWasm))

	h, err := m.WriteString(s.ctx, "loaded")
	s.Require().NoError(err)
	got, err := m.ConsumeString(s.ctx, h)
	s.Require().NoError(err)
	s.Equal("loaded", got)
}

func (s *LoaderIntegrationSuite) TestNonCompliantModule() {
	loader := host.NewLoader(host.WithOptions(host.WithSink(&host.MemorySink{})))

	m, report, err := loader.Load(s.ctx, wasmtest.Guest(wasmtest.WithVersion(9)))
	s.Require().ErrorIs(err, host.ErrNotCompliant)
	s.Nil(m)
	s.Require().NotNil(report)
	s.False(report.Passed())
}

func (s *LoaderIntegrationSuite) TestVerifyDisabled() {
	loader := host.NewLoader(host.WithVerify(false), host.WithOptions(host.WithSink(&host.MemorySink{})))

	m, report, err := loader.Load(s.ctx, wasmtest.Guest(wasmtest.WithVersion(9)))
	s.Require().NoError(err)
	defer m.Close(s.ctx)
	s.Nil(report)
}

func (s *LoaderIntegrationSuite) TestCustomProfileFromConfig() {
	cfg, err := config.Parse([]byte(`
profile: plugin
profiles:
  - name: plugin
    prefix: plugin_
    imports:
      log: plugin_log
      panic: plugin_panic
runtime:
  wasi: false
  module_name: my-plugin
`))
	s.Require().NoError(err)

	sink := &host.MemorySink{}
	loader := host.NewLoader(host.WithConfig(cfg), host.WithOptions(host.WithSink(sink)))
	wasm := wasmtest.Guest(wasmtest.WithPrefix("plugin_"), wasmtest.WithImports("env", "plugin_log", "plugin_panic"))

	m, report, err := loader.Load(s.ctx, wasm)
	s.Require().NoError(err)
	defer m.Close(s.ctx)

	s.Equal("plugin", report.Profile)
	s.Equal("my-plugin", m.Name())

	_, err = m.Call(s.ctx, "plugin_"+wasmtest.HookLog)
	s.Require().NoError(err)
	s.Equal([]string{wasmtest.LogMessage}, sink.Messages(host.SourceGuest))
}

func (s *LoaderIntegrationSuite) TestMissingFile() {
	_, _, err := host.NewLoader().LoadFile(s.ctx, filepath.Join(s.dir, "missing.wasm"))
	s.ErrorContains(err, "failed to read module")
}

func TestLoaderIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LoaderIntegrationSuite))
}

package appmanager

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"Recon340B/api/recon"
	"Recon340B/internal/library"
	"Recon340B/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	events   *[]string
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start "+f.name)
	return nil
}
func (f *fakeService) Stop() error {
	*f.events = append(*f.events, "stop "+f.name)
	return nil
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	am := NewAppManager()
	am.RegisterService(&fakeService{name: "a", events: &events})
	am.RegisterService(&fakeService{name: "b", events: &events})
	am.RegisterService(&fakeService{name: "c", startErr: errors.New("port in use"), events: &events})

	err := am.StartAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start service c")

	require.NoError(t, am.StopAll())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestLoadServiceSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
services:
  - name: recon
    start_order: 4
    config:
      port: 0
  - name: logger
    start_order: 1
  - name: library
    start_order: 2
    config:
      backend: csv
`), 0o644))

	cfgs, err := LoadServiceSequence(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 3)
	assert.Equal(t, "logger", cfgs[0].Name)
	assert.Equal(t, "recon", cfgs[2].Name)
	assert.Equal(t, 0, cfgs[2].Config["port"])
}

func TestAutoRegisterAndRun(t *testing.T) {
	lib = nil
	prev := logger.GlobalLogger
	t.Cleanup(func() {
		lib = nil
		logger.SetGlobalLogger(prev)
	})
	dir := t.TempDir()

	am := NewAppManager()
	require.NoError(t, am.AutoRegisterServices([]ServiceConfig{
		{Name: "logger", Config: map[string]interface{}{"folder_path": filepath.Join(dir, "logs")}},
		{Name: "recon", Config: map[string]interface{}{"port": 0}},
		{Name: "cron", Config: map[string]interface{}{"output_folder": filepath.Join(dir, "sweeps")}},
		{Name: "library", Config: map[string]interface{}{"folder_path": filepath.Join(dir, "library")}},
	}))
	require.NoError(t, am.StartAll())
	defer am.StopAll()

	assert.NotNil(t, logger.GlobalLogger)
	libSvc, ok := am.GetServiceByName("library").(*library.Service)
	require.True(t, ok)
	assert.NotNil(t, libSvc.Catalog)
	_, ok = am.GetServiceByName("recon").(*recon.ReconService)
	assert.True(t, ok)
	assert.Nil(t, am.GetServiceByName("gateway"))
}

func TestAutoRegisterUnknownService(t *testing.T) {
	am := NewAppManager()
	assert.Error(t, am.AutoRegisterServices([]ServiceConfig{{Name: "fx"}}))
}

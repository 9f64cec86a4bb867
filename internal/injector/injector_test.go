package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/internal/config"
	"github.com/zeusync/scenery/internal/extensions/spin"
)

func TestInitializeHost(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Scene.InitialCapacity = 32

	h, cleanup, err := InitializeHost(cfg)
	require.NoError(t, err)
	defer cleanup()
	defer h.Close()

	assert.Equal(t, 32, h.Scene().Capacity())
	require.Len(t, h.Scene().Extensions(), 1)
	assert.Equal(t, spin.Name, h.Scene().Extensions()[0].Name)
	require.Len(t, h.Scene().Controllers(), 1)
	assert.Equal(t, "editor", h.Scene().Controllers()[0].Name())
	assert.Same(t, h.Scene(), h.Session().Scene())

	stats := h.Step()
	assert.Equal(t, uint64(1), stats.Frame)
}

func TestInitializeHostRejectsBadLogEncoding(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Encoding = "xml"

	_, _, err := InitializeHost(cfg)
	assert.Error(t, err)
}

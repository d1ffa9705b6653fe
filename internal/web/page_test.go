package web

import (
	"strings"
	"testing"
	"time"

	"energydash/internal/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLayout(t *testing.T) flow.Layout {
	t.Helper()
	cfg := flow.DefaultConfig()
	cfg.Nodes = append(cfg.Nodes, flow.Node{ID: "car", Kind: flow.KindCar, Sign: -1, Wallbox: true})
	renderer, err := flow.NewRenderer(cfg, zap.NewNop())
	require.NoError(t, err)
	return renderer.Layout()
}

func TestRenderPage(t *testing.T) {
	html := RenderPage(testLayout(t), PageOptions{
		Title:       "Solar",
		Version:     "v1.2.3",
		Settings:    []string{"Sommer", "Winter"},
		BMSPacks:    2,
		EnableCar:   true,
		ReloadDelay: 3500 * time.Millisecond,
	})

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Solar</title>")
	assert.Contains(t, html, "v1.2.3")
	assert.Contains(t, html, `data-reload-ms="3500"`)

	t.Run("flow rows follow the layout", func(t *testing.T) {
		for _, id := range []string{"pv", "bat", "grid", "home", "car"} {
			assert.Contains(t, html, `data-row="`+id+`"`)
		}
		assert.Equal(t, 1, strings.Count(html, `data-id="wallbox-amp"`), "only the car row is a wallbox")
		assert.Contains(t, html, `<use href="#svg-sun"/>`)
	})

	t.Run("bars", func(t *testing.T) {
		assert.Contains(t, html, `data-bar="in"`)
		assert.Contains(t, html, `data-bar="out"`)
	})

	t.Run("settings use their index as value", func(t *testing.T) {
		assert.Contains(t, html, `value="0"`)
		assert.Contains(t, html, ">Sommer<")
		assert.Contains(t, html, ">Winter<")
	})

	t.Run("detail panel", func(t *testing.T) {
		for _, mode := range []string{"off", "auto", "manual"} {
			assert.Contains(t, html, `data-mode="`+mode+`"`)
		}
		assert.Contains(t, html, `data-field="meter.car"`)
		assert.NotContains(t, html, `data-field="meter.heat"`)
		assert.Contains(t, html, `data-field="packs.1.cycle"`)
		assert.NotContains(t, html, `data-field="packs.2.soc"`)
		assert.Contains(t, html, `id="manual-charge-slider"`)
		assert.Contains(t, html, `max="2500"`)
		assert.Contains(t, html, `id="btn-error-reset"`)
	})

	t.Run("assets are inlined", func(t *testing.T) {
		assert.Contains(t, html, "new WebSocket")
		assert.Contains(t, html, ".pft-row {")
	})
}

func TestRenderPage_Defaults(t *testing.T) {
	html := RenderPage(flow.Layout{}, PageOptions{})

	assert.Contains(t, html, "<title>Energy</title>")
	assert.Contains(t, html, `id="container-invalid"`)
	assert.Contains(t, html, `data-reload-ms="2000"`)
	assert.NotContains(t, html, "data-row=")
}

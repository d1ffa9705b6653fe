package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArrow(t *testing.T) {
	t.Run("zero power draws nothing", func(t *testing.T) {
		a := Arrow(0)
		assert.True(t, a.Empty())
		assert.Equal(t, 0.0, a.StrokeWidth)
		assert.Equal(t, 0, a.Direction)
	})

	t.Run("half scale", func(t *testing.T) {
		a := Arrow(1000)
		assert.Equal(t, 50.0, a.Percent)
		assert.InDelta(t, 12.5, a.StrokeWidth, 1e-9)
		assert.InDelta(t, 23.75, a.Length, 1e-9)
		assert.Equal(t, 1, a.Direction)
		assert.Equal(t, "M 11.875 23.75 L -11.875 0 L 11.875 -23.75", a.Path)
	})

	t.Run("negative power flips the tip", func(t *testing.T) {
		a := Arrow(-2000)
		assert.Equal(t, -1, a.Direction)
		assert.Equal(t, 20.0, a.StrokeWidth)
		assert.Equal(t, 30.0, a.Length)
		assert.Equal(t, "M -15 -30 L 15 0 L -15 30", a.Path)
	})

	t.Run("clamped beyond full scale", func(t *testing.T) {
		full := Arrow(ArrowFullScale)
		over := Arrow(ArrowFullScale * 3)
		assert.Equal(t, full.StrokeWidth, over.StrokeWidth)
		assert.Equal(t, full.Length, over.Length)
		assert.Equal(t, 100.0, over.Percent)
	})

	t.Run("stroke width is monotonic", func(t *testing.T) {
		prev := 0.0
		for p := 10.0; p <= 2600; p += 10 {
			a := Arrow(p)
			assert.GreaterOrEqual(t, a.StrokeWidth, prev, "power %v", p)
			assert.LessOrEqual(t, a.StrokeWidth, 20.0)
			// the tip must stay inside the viewbox next to the stroke
			assert.LessOrEqual(t, a.Length+a.StrokeWidth, 50.0+1e-9)
			prev = a.StrokeWidth
		}
	})

	t.Run("tiny power still gets minimum size", func(t *testing.T) {
		a := Arrow(1)
		assert.False(t, a.Empty())
		assert.InDelta(t, 5.0075, a.StrokeWidth, 1e-9)
	})
}

func TestBarWidths(t *testing.T) {
	entries := []BarEntry{
		{ID: "pv", Kind: KindPV},
		{ID: "bat", Kind: KindBat, Sign: -1},
		{ID: "grid", Kind: KindGrid},
	}

	tests := []struct {
		name string
		data Data
		want []int
	}{
		{
			name: "proportional",
			data: Data{"pv": {Power: Float(300)}, "bat": {Power: Float(-200)}, "grid": {Power: Float(0)}},
			want: []int{60, 40, 0},
		},
		{
			name: "zero sum gives everything to the last",
			data: Data{"pv": {Power: Float(0)}},
			want: []int{0, 0, 100},
		},
		{
			name: "nil snapshot",
			data: nil,
			want: []int{0, 0, 100},
		},
		{
			name: "last entry absorbs rounding",
			data: Data{"pv": {Power: Float(100)}, "bat": {Power: Float(-100)}, "grid": {Power: Float(100)}},
			want: []int{33, 33, 34},
		},
		{
			name: "negative contributions are ignored",
			data: Data{"pv": {Power: Float(500)}, "bat": {Power: Float(800)}, "grid": {Power: Float(-300)}},
			want: []int{100, 0, 0},
		},
		{
			name: "fractional watts are truncated",
			data: Data{"pv": {Power: Float(0.9)}, "bat": {Power: Float(-0.5)}, "grid": {Power: Float(1.7)}},
			want: []int{0, 0, 100},
		},
		{
			name: "out of range powers are bounded",
			data: Data{"pv": {Power: Float(1e300)}, "bat": {Power: Float(-1e300)}, "grid": {Power: Float(1000)}},
			want: []int{50, 50, 0},
		},
		{
			name: "missing ids count as zero",
			data: Data{"grid": {Power: Float(1234)}},
			want: []int{0, 0, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BarWidths(entries, tt.data)
			assert.Equal(t, tt.want, got)

			sum := 0
			for _, w := range got {
				sum += w
			}
			assert.Equal(t, 100, sum)
		})
	}

	assert.Nil(t, BarWidths(nil, nil))
}

func TestBarWidths_SumsToHundred(t *testing.T) {
	entries := []BarEntry{
		{ID: "a", Kind: KindPV},
		{ID: "b", Kind: KindBat},
		{ID: "c", Kind: KindGrid},
		{ID: "d", Kind: KindHome},
	}

	for a := 0.0; a < 1000; a += 97 {
		for b := 0.0; b < 1000; b += 131 {
			data := Data{
				"a": {Power: Float(a)},
				"b": {Power: Float(b)},
				"c": {Power: Float(7)},
				"d": {Power: Float(a / 3)},
			}
			widths := BarWidths(entries, data)

			var sum int64
			for _, e := range entries {
				sum += Contribution(e, data)
			}
			total := 0
			for i, w := range widths {
				if i < len(widths)-1 {
					assert.Equal(t, roundHalfUp(float64(Contribution(entries[i], data))/float64(sum)*100), w)
				}
				total += w
			}
			assert.Equal(t, 100, total)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		config Config
	}{
		{"duplicate id", Config{Nodes: []Node{{ID: "pv", Kind: KindPV}, {ID: "pv", Kind: KindPV}}}},
		{"missing id", Config{Nodes: []Node{{Kind: KindPV}}}},
		{"unknown kind", Config{Nodes: []Node{{ID: "x", Kind: "wind"}}}},
		{"bad sign", Config{Nodes: []Node{{ID: "x", Kind: KindPV, Sign: 2}}}},
		{"bad bar group", Config{Bars: map[BarGroup][]BarEntry{"side": {{ID: "pv", Kind: KindPV}}}}},
		{"bad bar kind", Config{Bars: map[BarGroup][]BarEntry{BarIn: {{ID: "pv", Kind: "sun"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func newTestRenderer(t *testing.T, config Config) *Renderer {
	r, err := NewRenderer(config, zap.NewNop())
	require.NoError(t, err)
	return r
}

func wallboxConfig() Config {
	cfg := DefaultConfig()
	cfg.Nodes = append(cfg.Nodes, Node{ID: "car", Kind: KindCar, Sign: -1, Wallbox: true})
	return cfg
}

func TestNewRenderer_Layout(t *testing.T) {
	r := newTestRenderer(t, wallboxConfig())
	layout := r.Layout()

	require.Len(t, layout.Rows, 5)
	assert.Equal(t, "pv", layout.Rows[0].ID)
	assert.Equal(t, "svg-sun", layout.Rows[0].Icon)
	assert.True(t, layout.Rows[4].Wallbox)

	require.Len(t, layout.Bars, 2)
	assert.Equal(t, BarIn, layout.Bars[0].Group)
	assert.Equal(t, BarOut, layout.Bars[1].Group)
	assert.Len(t, layout.Bars[1].Segments, 5)

	t.Run("icon override", func(t *testing.T) {
		cfg := Config{Nodes: []Node{{ID: "pv", Kind: KindPV, Icon: "svg-house"}}}
		r := newTestRenderer(t, cfg)
		assert.Equal(t, "svg-house", r.Layout().Rows[0].Icon)
		assert.Empty(t, r.Layout().Bars)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewRenderer(Config{Nodes: []Node{{ID: "a", Kind: "x"}}}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestRenderer_UpdateNil(t *testing.T) {
	r := newTestRenderer(t, wallboxConfig())
	view := r.Update(nil)

	require.Len(t, view.Rows, 5)
	for _, row := range view.Rows {
		assert.Equal(t, PowerPlaceholder, row.Power)
		assert.True(t, row.Arrow.Empty())
		assert.Equal(t, "", row.Info)
		assert.Equal(t, "", row.Subline)
		assert.Equal(t, IconEnabled, row.Icon)
	}

	require.Len(t, view.Bars, 2)
	for _, bar := range view.Bars {
		last := len(bar.Segments) - 1
		for i, seg := range bar.Segments {
			if i == last {
				assert.Equal(t, 100, seg.Width)
			} else {
				assert.Equal(t, 0, seg.Width)
			}
		}
	}
}

func TestRenderer_UpdateRows(t *testing.T) {
	r := newTestRenderer(t, wallboxConfig())

	view := r.Update(Data{
		"pv":   {Power: Float(2533), Subline: String("Süd: 600 W  Nord: 400 W")},
		"home": {Power: Float(411)},
		"bat":  {Power: Float(0), Info: String("90%"), Error: Bool(true), Disable: Bool(true)},
		"grid": {Power: Float(-2122)},
		"car":  {Power: Float(0), Disable: Bool(true)},
	})

	rows := map[string]RowView{}
	for _, row := range view.Rows {
		rows[row.ID] = row
	}

	assert.Equal(t, "2533 W", rows["pv"].Power)
	assert.Equal(t, "Süd: 600 W  Nord: 400 W", rows["pv"].Subline)
	assert.Equal(t, 1, rows["pv"].Arrow.Direction)

	// home has sign -1, so consumption points the other way
	assert.Equal(t, -1, rows["home"].Arrow.Direction)
	assert.Equal(t, "411 W", rows["home"].Power)

	// magnitude only, the arrow carries the direction
	assert.Equal(t, "2122 W", rows["grid"].Power)
	assert.Equal(t, -1, rows["grid"].Arrow.Direction)

	assert.Equal(t, "0 W", rows["bat"].Power)
	assert.True(t, rows["bat"].Arrow.Empty())
	assert.Equal(t, IconError, rows["bat"].Icon, "error wins over disable")
	assert.Equal(t, "pft-fill-error", rows["bat"].Icon.Class())

	assert.Equal(t, IconDisabled, rows["car"].Icon)
	assert.Nil(t, rows["pv"].Wallbox)
	assert.NotNil(t, rows["car"].Wallbox)
}

func TestRenderer_Wallbox(t *testing.T) {
	r := newTestRenderer(t, wallboxConfig())

	car := func(v View) *WallboxView {
		for _, row := range v.Rows {
			if row.ID == "car" {
				return row.Wallbox
			}
		}
		t.Fatal("no car row")
		return nil
	}

	wb := car(r.Update(Data{"car": {}}))
	require.NotNil(t, wb)
	assert.Nil(t, wb.PVReady, "never reported")
	assert.Equal(t, BadgeNone, wb.Badge)
	assert.Equal(t, "", wb.Amp)

	wb = car(r.Update(Data{"car": {WallboxPVReady: Bool(true), WallboxStop: Bool(false), WallboxAmp: String("3x16A")}}))
	require.NotNil(t, wb.PVReady)
	assert.True(t, *wb.PVReady)
	assert.Equal(t, BadgeOn, wb.Badge)
	assert.Equal(t, "3x16A", wb.Amp)

	// absent pvready keeps the previous visibility
	wb = car(r.Update(Data{"car": {WallboxStop: Bool(true)}}))
	require.NotNil(t, wb.PVReady)
	assert.True(t, *wb.PVReady)
	assert.Equal(t, BadgeOff, wb.Badge)
	assert.Equal(t, "", wb.Amp)

	wb = car(r.Update(nil))
	require.NotNil(t, wb.PVReady)
	assert.True(t, *wb.PVReady)

	wb = car(r.Update(Data{"car": {WallboxPVReady: Bool(false)}}))
	assert.False(t, *wb.PVReady)

	r.Reset()
	wb = car(r.Update(Data{"car": {WallboxStop: Bool(false)}}))
	assert.Nil(t, wb.PVReady, "reset forgets the last reported value")
}

func TestRenderer_WallboxFieldsIgnoredWithoutDecoration(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	view := r.Update(Data{"pv": {WallboxPVReady: Bool(true), WallboxAmp: String("1x6A")}})
	for _, row := range view.Rows {
		assert.Nil(t, row.Wallbox)
	}
}

package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleState = `{
	"session_invalid": false,
	"manual_auth": true,
	"ess": {"mode": "auto", "state": "auto_idle", "time": "2022-11-21 14:54:03", "setting": 1},
	"meterhub": {"pv_p": 2533, "home_p": 411, "grid_p": -2122, "car_plug": null},
	"bms": {"soc": 81, "u_pack": [51.2, null, 50.9], "i_pack": [1.5, 2, "x"]}
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleState))
	require.NoError(t, err)
	assert.NotNil(t, doc)

	_, err = Parse([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`   `))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"ess":`))
	assert.Error(t, err)
}

func TestDoc_SafeGetters(t *testing.T) {
	doc, err := Parse([]byte(sampleState))
	require.NoError(t, err)

	t.Run("nested numbers", func(t *testing.T) {
		v, ok := doc.Float("meterhub", "pv_p")
		assert.True(t, ok)
		assert.Equal(t, 2533.0, v)

		_, ok = doc.Float("meterhub", "missing")
		assert.False(t, ok)

		_, ok = doc.Float("ess", "mode")
		assert.False(t, ok, "string is not a number")

		n, ok := doc.Int("ess", "setting")
		assert.True(t, ok)
		assert.Equal(t, 1, n)

		_, ok = doc.Int("ess", "mode")
		assert.False(t, ok)

		_, ok = doc.Float("ess", "mode", "deeper")
		assert.False(t, ok, "path through a leaf")
	})

	t.Run("null counts as absent", func(t *testing.T) {
		assert.False(t, doc.Has("meterhub", "car_plug"))
		assert.Nil(t, doc.BoolPtr("meterhub", "car_plug"))
	})

	t.Run("strings", func(t *testing.T) {
		assert.Equal(t, "auto", doc.StringOr("?", "ess", "mode"))
		assert.Equal(t, "?", doc.StringOr("?", "ess", "unknown"))
		assert.Nil(t, doc.StringPtr("meterhub", "pv_p"))
	})

	t.Run("text", func(t *testing.T) {
		v, ok := doc.Text("meterhub", "grid_p")
		assert.True(t, ok)
		assert.Equal(t, "-2122", v)

		v, ok = doc.Text("ess", "mode")
		assert.True(t, ok)
		assert.Equal(t, "auto", v)

		v, ok = doc.Text("bms", "u_pack")
		assert.False(t, ok)
		assert.Equal(t, "", v)
	})

	t.Run("node power", func(t *testing.T) {
		w, ok := doc.NodePower("grid")
		assert.True(t, ok)
		assert.Equal(t, -2122.0, w)

		_, ok = doc.NodePower("car")
		assert.False(t, ok)

		_, ok = doc.NodePower("pv2")
		assert.False(t, ok)
	})

	t.Run("flags", func(t *testing.T) {
		assert.True(t, doc.ManualAuth())
		assert.False(t, doc.SessionInvalid())
	})

	t.Run("arrays", func(t *testing.T) {
		assert.Equal(t, 3, doc.Len("bms", "u_pack"))
		assert.Equal(t, 0, doc.Len("bms", "t_pack"))

		u, ok := doc.FloatAt(0, "bms", "u_pack")
		assert.True(t, ok)
		assert.Equal(t, 51.2, u)

		_, ok = doc.FloatAt(1, "bms", "u_pack")
		assert.False(t, ok)

		_, ok = doc.FloatAt(2, "bms", "i_pack")
		assert.False(t, ok)

		_, ok = doc.FloatAt(7, "bms", "u_pack")
		assert.False(t, ok)
	})

	t.Run("object", func(t *testing.T) {
		ess := doc.Object("ess")
		require.NotNil(t, ess)
		assert.Equal(t, "auto_idle", ess.StringOr("", "state"))
		assert.Nil(t, doc.Object("ess", "mode"))
	})
}

func TestDoc_NilIsEmpty(t *testing.T) {
	var doc Doc

	assert.False(t, doc.Has("ess"))
	assert.False(t, doc.SessionInvalid())
	assert.False(t, doc.ManualAuth())
	assert.False(t, doc.Truthy("meterhub", "car_plug"))
	assert.Equal(t, 0, doc.Len("bms", "u_pack"))
	assert.Nil(t, doc.Object("ess"))
	_, ok := doc.Float("meterhub", "pv_p")
	assert.False(t, ok)
}

func TestDoc_Truthy(t *testing.T) {
	doc := Doc{
		"a": true,
		"b": 0.0,
		"c": 1.0,
		"d": "",
		"e": "yes",
		"f": nil,
	}

	assert.True(t, doc.Truthy("a"))
	assert.False(t, doc.Truthy("b"))
	assert.True(t, doc.Truthy("c"))
	assert.False(t, doc.Truthy("d"))
	assert.True(t, doc.Truthy("e"))
	assert.False(t, doc.Truthy("f"))
	assert.False(t, doc.Truthy("g"))
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetadata(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, SanitizeMetadata(nil))
	})

	t.Run("json-safe values unchanged", func(t *testing.T) {
		md := map[string]interface{}{
			"count":   42,
			"ratio":   0.5,
			"name":    "disk",
			"enabled": true,
			"blank":   nil,
		}
		assert.Equal(t, md, SanitizeMetadata(md))
	})

	t.Run("nested structures recursed", func(t *testing.T) {
		md := map[string]interface{}{
			"nested": map[string]interface{}{
				"ch": make(chan int),
			},
			"list": []interface{}{1, make(chan int)},
		}
		out := SanitizeMetadata(md)

		nested := out["nested"].(map[string]interface{})
		assert.IsType(t, "", nested["ch"], "channel inside a nested map must be stringified")

		list := out["list"].([]interface{})
		assert.Equal(t, 1, list[0])
		assert.IsType(t, "", list[1])
	})

	t.Run("unmarshalable values stringified", func(t *testing.T) {
		out := SanitizeMetadata(map[string]interface{}{
			"ch": make(chan int),
			"fn": func() {},
		})
		assert.IsType(t, "", out["ch"])
		assert.IsType(t, "", out["fn"])
	})

	t.Run("marshalable structs kept", func(t *testing.T) {
		type point struct{ X, Y int }
		out := SanitizeMetadata(map[string]interface{}{"p": point{1, 2}})
		assert.Equal(t, point{1, 2}, out["p"])
	})

	t.Run("input not mutated", func(t *testing.T) {
		md := map[string]interface{}{"ch": make(chan int)}
		_ = SanitizeMetadata(md)
		assert.IsType(t, make(chan int), md["ch"], "sanitizing must copy, not rewrite the input")
	})
}

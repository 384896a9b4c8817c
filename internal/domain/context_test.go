package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := time.Now()
	zero := int64(0)
	hour := int64(3600)

	eternal := &Context{UpdatedAt: now.Add(-24 * time.Hour)}
	assert.False(t, eternal.IsExpired(now), "nil TTL — вечная жизнь")

	immediate := &Context{TTLSeconds: &zero, UpdatedAt: now.Add(-time.Millisecond)}
	assert.True(t, immediate.IsExpired(now))

	alive := &Context{TTLSeconds: &hour, UpdatedAt: now.Add(-time.Minute)}
	assert.False(t, alive.IsExpired(now))

	stale := &Context{TTLSeconds: &hour, UpdatedAt: now.Add(-2 * time.Hour)}
	assert.True(t, stale.IsExpired(now))

	var nilCtx *Context
	assert.False(t, nilCtx.IsExpired(now))
}

func TestMergeDataNestedMapsMerge(t *testing.T) {
	c := &Context{Data: map[string]interface{}{
		"scalar": "old",
		"nested": map[string]interface{}{
			"a": 1,
			"deep": map[string]interface{}{
				"x": true,
			},
		},
	}}

	c.MergeData(map[string]interface{}{
		"scalar": "new",
		"added":  42,
		"nested": map[string]interface{}{
			"b":    2,
			"deep": map[string]interface{}{"y": false},
		},
	})

	assert.Equal(t, "new", c.Data["scalar"])
	assert.Equal(t, 42, c.Data["added"])

	nested := c.Data["nested"].(map[string]interface{})
	assert.Equal(t, 1, nested["a"])
	assert.Equal(t, 2, nested["b"])

	deep := nested["deep"].(map[string]interface{})
	assert.Equal(t, true, deep["x"])
	assert.Equal(t, false, deep["y"])
}

func TestMergeDataMapReplacesScalar(t *testing.T) {
	c := &Context{Data: map[string]interface{}{"k": "scalar"}}
	c.MergeData(map[string]interface{}{"k": map[string]interface{}{"now": "map"}})
	assert.Equal(t, map[string]interface{}{"now": "map"}, c.Data["k"])
}

func TestMergeDataIntoNil(t *testing.T) {
	c := &Context{}
	c.MergeData(map[string]interface{}{"k": "v"})
	assert.Equal(t, "v", c.Data["k"])
}

func TestCloneIsDeep(t *testing.T) {
	ttl := int64(60)
	c := &Context{
		ID:         "c1",
		TTLSeconds: &ttl,
		Data: map[string]interface{}{
			"nested": map[string]interface{}{"k": "v"},
		},
	}

	cp := c.Clone()
	cp.Data["nested"].(map[string]interface{})["k"] = "mutated"
	*cp.TTLSeconds = 999

	assert.Equal(t, "v", c.Data["nested"].(map[string]interface{})["k"])
	assert.Equal(t, int64(60), *c.TTLSeconds)
}

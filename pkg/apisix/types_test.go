package apisix_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

func TestEntity_Identity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "r1", apisix.Entity{"id": "r1"}.ID())
	assert.Equal(t, "42", apisix.Entity{"id": float64(42)}.ID())
	assert.Equal(t, "7", apisix.Entity{"id": 7}.ID())
	assert.Equal(t, "9", apisix.Entity{"id": json.Number("9")}.ID())
	assert.Empty(t, apisix.Entity{"id": nil}.ID())
	assert.Empty(t, apisix.Entity{"id": []interface{}{}}.ID())
	assert.Equal(t, "jack", apisix.Entity{"username": "jack"}.IdentityValue("username"))
}

func TestEntity_CopyHelpers(t *testing.T) {
	t.Parallel()

	original := apisix.Entity{"id": "r1", "uri": "/a", "create_time": float64(1)}

	stripped := original.Without("id", "create_time")
	assert.Equal(t, apisix.Entity{"uri": "/a"}, stripped)
	assert.Len(t, original, 3)

	merged := original.Merge(apisix.Entity{"uri": "/b", "name": "n"})
	assert.Equal(t, "/b", merged["uri"])
	assert.Equal(t, "n", merged["name"])
	assert.Equal(t, "/a", original["uri"])

	copied := original.Copy()
	copied["uri"] = "/c"
	assert.Equal(t, "/a", original["uri"])
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	var empty *apisix.QueryParams
	assert.False(t, empty.HasPaging())
	assert.Empty(t, empty.ToValues())
	assert.Nil(t, empty.WithoutPaging())

	params := apisix.NewQueryParams().WithPage(2).WithPageSize(20).WithFilter("name", "api")
	assert.True(t, params.HasPaging())
	assert.Equal(t, "name=api&page=2&page_size=20", params.ToValues().Encode())

	unpaged := params.WithoutPaging()
	assert.False(t, unpaged.HasPaging())
	assert.Equal(t, "name=api", unpaged.ToValues().Encode())
	assert.True(t, params.HasPaging())
}

func TestCapabilitySet_Plugins(t *testing.T) {
	t.Parallel()

	conservative := apisix.ConservativeCapabilities()
	assert.Equal(t, "2", conservative.MajorVersion)
	assert.False(t, conservative.SupportsPagination)
	assert.Empty(t, conservative.SupportedPlugins())
	assert.False(t, conservative.SupportsPlugin("key-auth"))

	withPlugins := conservative.WithPlugins("limit-count", "key-auth", "key-auth")
	assert.Equal(t, []string{"key-auth", "limit-count"}, withPlugins.SupportedPlugins())
	assert.True(t, withPlugins.SupportsPlugin("key-auth"))

	extended := withPlugins.WithPlugins("cors")
	assert.Len(t, extended.SupportedPlugins(), 3)
	assert.Len(t, withPlugins.SupportedPlugins(), 2)
	assert.Empty(t, conservative.SupportedPlugins())
}

func TestValidateEntity(t *testing.T) {
	t.Parallel()

	assert.NoError(t, apisix.ValidateEntity("/apisix/admin/routes", apisix.Entity{"uri": "/"}))
	assert.True(t, apisix.IsValidationError(apisix.ValidateEntity("/apisix/admin/routes", apisix.Entity{})))
	assert.NoError(t, apisix.ValidateEntity("/apisix/admin/ssls", apisix.Entity{"cert": "C", "key": "K"}))
	assert.Error(t, apisix.ValidateEntity("/apisix/admin/ssls", apisix.Entity{"cert": "C", "key": ""}))
	assert.Error(t, apisix.ValidateEntity("/apisix/admin/consumers/jack/credentials", apisix.Entity{"plugins": map[string]interface{}{}}))

	assert.True(t, apisix.RequiresValidation("/apisix/admin/consumers"))
	assert.False(t, apisix.RequiresValidation("/apisix/admin/upstreams"))
}

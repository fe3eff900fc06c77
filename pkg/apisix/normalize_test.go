package apisix_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

func TestExtractValue(t *testing.T) {
	t.Parallel()

	want := apisix.Entity{"id": "1", "uri": "/hello"}

	tests := []struct {
		name string
		body string
	}{
		{name: "direct", body: `{"id":"1","uri":"/hello"}`},
		{name: "wrapped", body: `{"key":"/apisix/routes/1","value":{"id":"1","uri":"/hello"}}`},
		{name: "wrapped without id", body: `{"key":"/apisix/routes/1","value":{"uri":"/hello"}}`},
		{name: "legacy", body: `{"action":"get","node":{"key":"/apisix/routes/1","value":{"id":"1","uri":"/hello"}}}`},
		{name: "legacy without id", body: `{"action":"get","node":{"key":"/apisix/routes/1","value":{"uri":"/hello"}}}`},
		{name: "numeric id mismatching key", body: `{"key":"/apisix/routes/1","value":{"id":7,"uri":"/hello"}}`},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			entity, err := apisix.ExtractValue([]byte(testCase.body))
			require.NoError(t, err)
			assert.Equal(t, want, entity)
		})
	}
}

func TestExtractValue_Errors(t *testing.T) {
	t.Parallel()

	_, err := apisix.ExtractValue(nil)
	require.ErrorIs(t, err, apisix.ErrEmptyBody)

	_, err = apisix.ExtractValue([]byte(`{"broken"`))
	assert.True(t, apisix.IsParseError(err))

	_, err = apisix.ExtractValue([]byte(`{"total":1,"list":[{"value":{"id":"1"}}]}`))
	require.ErrorIs(t, err, apisix.ErrUnknownEnvelope)

	_, err = apisix.ExtractValue([]byte(`{"node":{"key":"/apisix/routes/1"}}`))
	require.ErrorIs(t, err, apisix.ErrUnknownEnvelope)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestExtractListWithMeta(t *testing.T) {
	t.Parallel()

	total := 2

	tests := []struct {
		name  string
		body  string
		ids   []string
		total *int
	}{
		{
			name:  "wrapped list",
			body:  `{"total":2,"list":[{"key":"/apisix/routes/1","value":{"id":"1"}},{"key":"/apisix/routes/2","value":{"id":"2"}}]}`,
			ids:   []string{"1", "2"},
			total: &total,
		},
		{
			name: "legacy list",
			body: `{"action":"get","node":{"dir":true,"key":"/apisix/routes","nodes":[{"key":"/apisix/routes/1","value":{"uri":"/a"}},{"key":"/apisix/routes/2","value":{"uri":"/b"}}]}}`,
			ids:  []string{"1", "2"},
		},
		{
			name: "legacy empty directory as object",
			body: `{"action":"get","node":{"dir":true,"key":"/apisix/routes","nodes":{}}}`,
			ids:  []string{},
		},
		{
			name: "legacy directory without nodes",
			body: `{"action":"get","node":{"dir":true,"key":"/apisix/routes"}}`,
			ids:  []string{},
		},
		{
			name: "bare array",
			body: `[{"id":"1"},{"key":"/apisix/routes/2","value":{"id":"2"}}]`,
			ids:  []string{"1", "2"},
		},
		{
			name: "tombstones skipped",
			body: `{"list":[{"key":"/apisix/routes/1","value":null},{"key":"/apisix/routes/2","value":{"id":"2"}},"junk"]}`,
			ids:  []string{"2"},
		},
		{
			name: "empty body",
			body: ``,
			ids:  []string{},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			items, meta, err := apisix.ExtractListWithMeta([]byte(testCase.body))
			require.NoError(t, err)
			require.NotNil(t, items)

			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.ID())
			}

			assert.Equal(t, testCase.ids, ids)
			assert.Equal(t, testCase.total, meta.Total)
		})
	}

	t.Run("has_more", func(t *testing.T) {
		t.Parallel()

		_, meta, err := apisix.ExtractListWithMeta([]byte(`{"list":[],"has_more":true}`))
		require.NoError(t, err)
		require.NotNil(t, meta.HasMore)
		assert.True(t, *meta.HasMore)
	})

	t.Run("single entity is not a list", func(t *testing.T) {
		t.Parallel()

		_, err := apisix.ExtractList([]byte(`{"key":"/apisix/routes/1","value":{"id":"1"}}`))
		require.ErrorIs(t, err, apisix.ErrUnknownEnvelope)
	})
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, apisix.ResponseFormatLegacy, apisix.DetectFormat([]byte(`{"node":{"dir":true,"nodes":{}}}`)))
	assert.Equal(t, apisix.ResponseFormatWrapped, apisix.DetectFormat([]byte(`{"total":0,"list":[]}`)))
	assert.Equal(t, apisix.ResponseFormatWrapped, apisix.DetectFormat([]byte(`not json`)))
}

package text2sql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestActionSchemaDeclaresAllOperations(t *testing.T) {
	doc := ActionSchema()

	require.Contains(t, doc.Paths, "/getschema")
	require.Contains(t, doc.Paths, "/querydatabase")
	require.Contains(t, doc.Paths, "/refreshdata")

	assert.Contains(t, doc.Paths["/getschema"], "get")
	assert.Contains(t, doc.Paths["/querydatabase"], "post")
	assert.Contains(t, doc.Paths["/refreshdata"], "post")
}

func TestActionSchemaJSON(t *testing.T) {
	raw := ActionSchemaJSON()

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "3.0.0", gjson.Get(raw, "openapi").String())
	assert.Equal(t, "querydatabase", gjson.Get(raw, `paths./querydatabase.post.operationId`).String())

	// The query body is a required string property.
	assert.True(t, gjson.Get(raw, `paths./querydatabase.post.requestBody.required`).Bool())
	assert.Equal(t, "string",
		gjson.Get(raw, `paths./querydatabase.post.requestBody.content.application/json.schema.properties.query.type`).String())
}

func TestActionSchemaJSONDeterministic(t *testing.T) {
	assert.Equal(t, ActionSchemaJSON(), ActionSchemaJSON())
}

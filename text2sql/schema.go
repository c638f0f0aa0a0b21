package text2sql

import (
	"encoding/json"
	"fmt"
)

// The action-group API schema tells the Bedrock agent which operations the
// Lambda executor supports. Paths sort deterministically because Go marshals
// map keys in order.

// APIDoc is a minimal OpenAPI 3 document.
type APIDoc struct {
	OpenAPI string                          `json:"openapi"`
	Info    APIInfo                         `json:"info"`
	Paths   map[string]map[string]Operation `json:"paths"`
}

// APIInfo is the OpenAPI info block.
type APIInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Operation describes one action the agent may invoke.
type Operation struct {
	Summary     string                  `json:"summary"`
	Description string                  `json:"description"`
	OperationID string                  `json:"operationId"`
	RequestBody *RequestBodySpec        `json:"requestBody,omitempty"`
	Responses   map[string]ResponseSpec `json:"responses"`
}

// RequestBodySpec describes an operation request body.
type RequestBodySpec struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

// ResponseSpec describes an operation response.
type ResponseSpec struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content"`
}

// MediaType wraps a JSON schema.
type MediaType struct {
	Schema Schema `json:"schema"`
}

// Schema is a JSON schema fragment.
type Schema struct {
	Type       string            `json:"type"`
	Properties map[string]Schema `json:"properties,omitempty"`
	Items      *Schema           `json:"items,omitempty"`
	Required   []string          `json:"required,omitempty"`
	Desc       string            `json:"description,omitempty"`
}

// ActionSchema returns the OpenAPI document for the query action group.
func ActionSchema() APIDoc {
	jsonBody := func(s Schema) map[string]MediaType {
		return map[string]MediaType{"application/json": {Schema: s}}
	}

	return APIDoc{
		OpenAPI: "3.0.0",
		Info: APIInfo{
			Title:       "Athena query API",
			Version:     "1.0.0",
			Description: "API for getting the database schema, querying Athena, and refreshing the data catalog.",
		},
		Paths: map[string]map[string]Operation{
			"/getschema": {
				"get": {
					Summary:     "Get the database schema",
					Description: "Returns every table in the database with its list of columns. Call this before constructing a SQL query.",
					OperationID: "getschema",
					Responses: map[string]ResponseSpec{
						"200": {
							Description: "Tables and their columns",
							Content: jsonBody(Schema{
								Type: "object",
								Properties: map[string]Schema{
									"tables": {
										Type: "array",
										Items: &Schema{
											Type: "object",
											Properties: map[string]Schema{
												"name":    {Type: "string", Desc: "Table name"},
												"columns": {Type: "array", Items: &Schema{Type: "string"}},
											},
										},
									},
								},
							}),
						},
					},
				},
			},
			"/querydatabase": {
				"post": {
					Summary:     "Execute a SQL query against Athena",
					Description: "Executes the provided SQL query against the Athena database and returns the result rows. Use LIMIT to keep responses small.",
					OperationID: "querydatabase",
					RequestBody: &RequestBodySpec{
						Required: true,
						Content: jsonBody(Schema{
							Type: "object",
							Properties: map[string]Schema{
								"query": {Type: "string", Desc: "SQL query to execute"},
							},
							Required: []string{"query"},
						}),
					},
					Responses: map[string]ResponseSpec{
						"200": {
							Description: "Query result rows",
							Content: jsonBody(Schema{
								Type: "object",
								Properties: map[string]Schema{
									"rows":      {Type: "array", Items: &Schema{Type: "array", Items: &Schema{Type: "string"}}},
									"rowCount":  {Type: "integer", Desc: "Rows returned before truncation"},
									"truncated": {Type: "boolean", Desc: "True when rows were dropped to fit the response limit"},
								},
							}),
						},
					},
				},
			},
			"/refreshdata": {
				"post": {
					Summary:     "Refresh the data catalog",
					Description: "Starts the Glue crawler so newly landed data becomes queryable.",
					OperationID: "refreshdata",
					Responses: map[string]ResponseSpec{
						"200": {
							Description: "Crawler start acknowledgement",
							Content: jsonBody(Schema{
								Type: "object",
								Properties: map[string]Schema{
									"started": {Type: "boolean"},
								},
							}),
						},
					},
				},
			},
		},
	}
}

// ActionSchemaJSON returns the marshaled action-group schema for embedding in
// the agent definition.
func ActionSchemaJSON() string {
	b, err := json.MarshalIndent(ActionSchema(), "", "  ")
	if err != nil {
		panic(fmt.Sprintf("marshaling action schema: %v", err))
	}
	return string(b)
}

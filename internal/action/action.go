// Package action implements the Bedrock agent action-group Lambda: it serves
// the /getschema, /querydatabase, and /refreshdata operations declared in the
// agent's OpenAPI schema.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/dustin/go-humanize"
)

// MaxResponseBytes is the Bedrock action-group response cap. Result sets are
// truncated row by row to stay under it.
const MaxResponseBytes = 25 * 1024

// Request is the action-group invocation event Bedrock sends the Lambda.
type Request struct {
	MessageVersion string      `json:"messageVersion"`
	Agent          AgentInfo   `json:"agent"`
	SessionID      string      `json:"sessionId"`
	InputText      string      `json:"inputText"`
	ActionGroup    string      `json:"actionGroup"`
	APIPath        string      `json:"apiPath"`
	HTTPMethod     string      `json:"httpMethod"`
	Parameters     []Parameter `json:"parameters"`
	RequestBody    RequestBody `json:"requestBody"`
}

// AgentInfo identifies the calling agent.
type AgentInfo struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Alias   string `json:"alias"`
	Version string `json:"version"`
}

// Parameter is one named operation parameter or body property.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RequestBody carries body properties keyed by media type.
type RequestBody struct {
	Content map[string]PropertySet `json:"content"`
}

// PropertySet is the property list for one media type.
type PropertySet struct {
	Properties []Parameter `json:"properties"`
}

// Property returns a body property value by name across media types.
func (r Request) Property(name string) (string, bool) {
	for _, set := range r.RequestBody.Content {
		for _, p := range set.Properties {
			if p.Name == name {
				return p.Value, true
			}
		}
	}
	return "", false
}

// Response is the action-group response envelope.
type Response struct {
	MessageVersion string      `json:"messageVersion"`
	Response       APIResponse `json:"response"`
}

// APIResponse is the HTTP-shaped inner response.
type APIResponse struct {
	ActionGroup    string                 `json:"actionGroup"`
	APIPath        string                 `json:"apiPath"`
	HTTPMethod     string                 `json:"httpMethod"`
	HTTPStatusCode int                    `json:"httpStatusCode"`
	ResponseBody   map[string]BodyContent `json:"responseBody"`
}

// BodyContent is a serialized response body for one media type.
type BodyContent struct {
	Body string `json:"body"`
}

// Config is the Lambda environment contract set by the CDK stack.
type Config struct {
	OutputLocation string
	Database       string
	Region         string
	Bucket         string
	Crawler        string
	Workgroup      string
}

// LoadConfig reads the stack-provided environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		OutputLocation: os.Getenv("outputLocation"),
		Database:       os.Getenv("glue_database_name"),
		Region:         os.Getenv("region"),
		Bucket:         os.Getenv("bucket_name"),
		Crawler:        os.Getenv("crawler_name"),
		Workgroup:      os.Getenv("athena_workgroup"),
	}
	if cfg.OutputLocation == "" || cfg.Database == "" {
		return cfg, fmt.Errorf("outputLocation and glue_database_name must be set")
	}
	return cfg, nil
}

// SchemaQuerier is the Athena surface the handler needs.
type SchemaQuerier interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]string, error)
	Query(ctx context.Context, sql string) ([][]string, error)
}

// GlueAPI is the slice of the Glue API the handler needs.
type GlueAPI interface {
	StartCrawler(ctx context.Context, params *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
}

// Handler dispatches action-group invocations.
type Handler struct {
	Athena      SchemaQuerier
	Glue        GlueAPI
	CrawlerName string
}

// tableSchema is one /getschema entry.
type tableSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// queryResult is the /querydatabase payload.
type queryResult struct {
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"rowCount"`
	Truncated bool       `json:"truncated"`
}

// Handle serves one action-group invocation.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	log.Infof("action %s %s (session %s)", req.HTTPMethod, req.APIPath, req.SessionID)

	var body string
	var status int
	var err error

	switch req.APIPath {
	case "/getschema":
		body, err = h.getSchema(ctx)
		status = 200
	case "/querydatabase":
		body, err = h.queryDatabase(ctx, req)
		status = 200
	case "/refreshdata":
		body, err = h.refreshData(ctx)
		status = 200
	default:
		body = fmt.Sprintf(`{"error":"unknown apiPath %s"}`, req.APIPath)
		status = 404
	}

	if err != nil {
		log.Errorf("action %s failed: %v", req.APIPath, err)
		body = fmt.Sprintf(`{"error":%q}`, err.Error())
		status = 500
	}

	log.Debugf("action %s response size %s", req.APIPath, humanize.Bytes(uint64(len(body))))

	return Response{
		MessageVersion: req.MessageVersion,
		Response: APIResponse{
			ActionGroup:    req.ActionGroup,
			APIPath:        req.APIPath,
			HTTPMethod:     req.HTTPMethod,
			HTTPStatusCode: status,
			ResponseBody: map[string]BodyContent{
				"application/json": {Body: body},
			},
		},
	}, nil
}

func (h *Handler) getSchema(ctx context.Context) (string, error) {
	tables, err := h.Athena.Tables(ctx)
	if err != nil {
		return "", err
	}

	schemas := make([]tableSchema, 0, len(tables))
	for _, table := range tables {
		columns, err := h.Athena.Columns(ctx, table)
		if err != nil {
			return "", err
		}
		schemas = append(schemas, tableSchema{Name: table, Columns: columns})
	}

	out, err := json.Marshal(map[string][]tableSchema{"tables": schemas})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *Handler) queryDatabase(ctx context.Context, req Request) (string, error) {
	query, ok := req.Property("query")
	if !ok || query == "" {
		return "", fmt.Errorf("request body is missing the query property")
	}

	rows, err := h.Athena.Query(ctx, query)
	if err != nil {
		return "", err
	}
	return marshalBounded(rows, MaxResponseBytes)
}

func (h *Handler) refreshData(ctx context.Context) (string, error) {
	if h.Glue == nil || h.CrawlerName == "" {
		return "", fmt.Errorf("crawler refresh is not configured")
	}
	_, err := h.Glue.StartCrawler(ctx, &glue.StartCrawlerInput{
		Name: aws.String(h.CrawlerName),
	})
	if err != nil {
		return "", fmt.Errorf("starting crawler %s: %w", h.CrawlerName, err)
	}
	return `{"started":true}`, nil
}

// marshalBounded serializes rows, dropping trailing rows until the payload
// fits the limit. The agent instruction tells the model to retry with LIMIT
// when it sees truncation.
func marshalBounded(rows [][]string, limit int) (string, error) {
	total := len(rows)
	result := queryResult{Rows: rows, RowCount: total}

	for {
		out, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		if len(out) <= limit || len(result.Rows) == 0 {
			if result.Truncated {
				log.Warnf("query response truncated to %d of %d rows (%s)",
					len(result.Rows), total, humanize.Bytes(uint64(len(out))))
			}
			return string(out), nil
		}

		// Drop a proportional chunk so huge results converge quickly.
		drop := len(result.Rows) / 4
		if drop == 0 {
			drop = 1
		}
		result.Rows = result.Rows[:len(result.Rows)-drop]
		result.Truncated = true
	}
}

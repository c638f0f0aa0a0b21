// Package athenaq runs Athena queries and introspects the Glue-cataloged
// schema that backs the text-to-SQL agent.
package athenaq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// Client is the slice of the Athena API this package uses.
type Client interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// QueryError reports a query that finished in a non-success state.
type QueryError struct {
	ID     string
	State  types.QueryExecutionState
	Reason string
}

func (e *QueryError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("query %s finished %s: %s", e.ID, e.State, e.Reason)
	}
	return fmt.Sprintf("query %s finished %s", e.ID, e.State)
}

// Runner executes queries against one Athena database.
type Runner struct {
	client         Client
	Database       string
	Workgroup      string
	OutputLocation string

	// PollInterval is the wait between execution-state checks.
	PollInterval time.Duration
}

// NewRunner creates a runner for the given database. outputLocation is the
// s3:// prefix Athena writes results to.
func NewRunner(client Client, database, outputLocation string) *Runner {
	return &Runner{
		client:         client,
		Database:       database,
		OutputLocation: outputLocation,
		PollInterval:   time.Second,
	}
}

// Run starts a query and blocks until it finishes, returning the execution
// ID. A FAILED or CANCELLED query returns a *QueryError.
func (r *Runner) Run(ctx context.Context, sql string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: aws.String(r.Database),
		},
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: aws.String(r.OutputLocation),
		},
	}
	if r.Workgroup != "" {
		input.WorkGroup = aws.String(r.Workgroup)
	}

	out, err := r.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("starting query: %w", err)
	}
	id := aws.ToString(out.QueryExecutionId)
	log.Debugf("started athena query %s", id)

	if err := r.wait(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// wait polls the execution until it reaches a terminal state.
func (r *Runner) wait(ctx context.Context, id string) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(id),
		})
		if err != nil {
			return fmt.Errorf("polling query %s: %w", id, err)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case types.QueryExecutionStateSucceeded:
			return nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			reason := ""
			if status.StateChangeReason != nil {
				reason = *status.StateChangeReason
			}
			return &QueryError{ID: id, State: status.State, Reason: reason}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Rows fetches all result rows for a finished query, skipping the header row.
func (r *Runner) Rows(ctx context.Context, id string) ([][]string, error) {
	var rows [][]string
	var nextToken *string
	first := true

	for {
		out, err := r.client.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(id),
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching results for query %s: %w", id, err)
		}

		resultRows := out.ResultSet.Rows
		if first && len(resultRows) > 0 {
			resultRows = resultRows[1:]
			first = false
		}
		for _, row := range resultRows {
			cells := make([]string, len(row.Data))
			for i, datum := range row.Data {
				cells[i] = aws.ToString(datum.VarCharValue)
			}
			rows = append(rows, cells)
		}

		if out.NextToken == nil {
			return rows, nil
		}
		nextToken = out.NextToken
	}
}

// Query runs a statement and returns its rows.
func (r *Runner) Query(ctx context.Context, sql string) ([][]string, error) {
	id, err := r.Run(ctx, sql)
	if err != nil {
		return nil, err
	}
	return r.Rows(ctx, id)
}

// Tables lists the tables and views in the database.
func (r *Runner) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.Query(ctx, fmt.Sprintf("SHOW TABLES IN %s", r.Database))
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && row[0] != "" {
			tables = append(tables, row[0])
		}
	}
	return tables, nil
}

// Columns returns the column names of a table. DESCRIBE rows carry
// "name<TAB>type" in their first cell; only the name is kept.
func (r *Runner) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.Query(ctx, fmt.Sprintf("DESCRIBE %s.%s", r.Database, table))
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(strings.SplitN(row[0], "\t", 2)[0])
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		columns = append(columns, name)
	}
	return columns, nil
}

package athenaq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the Athena API. States are consumed one per
// GetQueryExecution call; pages one per GetQueryResults call.
type fakeClient struct {
	started []string
	states  []types.QueryExecutionState
	reason  string
	pages   []*athena.GetQueryResultsOutput
	page    int
}

func (f *fakeClient) StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.started = append(f.started, aws.ToString(params.QueryString))
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qid-1")}, nil
}

func (f *fakeClient) GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	state := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return &athena.GetQueryExecutionOutput{
		QueryExecution: &types.QueryExecution{
			Status: &types.QueryExecutionStatus{
				State:             state,
				StateChangeReason: aws.String(f.reason),
			},
		},
	}, nil
}

func (f *fakeClient) GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	out := f.pages[f.page]
	f.page++
	return out, nil
}

func resultPage(next *string, rows ...[]string) *athena.GetQueryResultsOutput {
	out := &athena.GetQueryResultsOutput{
		NextToken: next,
		ResultSet: &types.ResultSet{},
	}
	for _, row := range rows {
		data := make([]types.Datum, len(row))
		for i, cell := range row {
			data[i] = types.Datum{VarCharValue: aws.String(cell)}
		}
		out.ResultSet.Rows = append(out.ResultSet.Rows, types.Row{Data: data})
	}
	return out
}

func newTestRunner(client Client) *Runner {
	r := NewRunner(client, "vehicle-data", "s3://athena-destination-store-texttosql/")
	r.PollInterval = time.Millisecond
	return r
}

func TestRunSucceeds(t *testing.T) {
	client := &fakeClient{
		states: []types.QueryExecutionState{
			types.QueryExecutionStateRunning,
			types.QueryExecutionStateSucceeded,
		},
	}
	r := newTestRunner(client)

	id, err := r.Run(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "qid-1", id)
	assert.Equal(t, []string{"SELECT 1"}, client.started)
}

func TestRunFailedQuery(t *testing.T) {
	client := &fakeClient{
		states: []types.QueryExecutionState{types.QueryExecutionStateFailed},
		reason: "SYNTAX_ERROR: line 1",
	}
	r := newTestRunner(client)

	_, err := r.Run(context.Background(), "SELEC 1")
	require.Error(t, err)

	var qerr *QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "qid-1", qerr.ID)
	assert.Equal(t, types.QueryExecutionStateFailed, qerr.State)
	assert.Contains(t, qerr.Error(), "SYNTAX_ERROR")
}

func TestRunContextCancelled(t *testing.T) {
	client := &fakeClient{
		states: []types.QueryExecutionState{types.QueryExecutionStateRunning},
	}
	r := newTestRunner(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "SELECT 1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRowsSkipsHeaderAndPaginates(t *testing.T) {
	client := &fakeClient{
		pages: []*athena.GetQueryResultsOutput{
			resultPage(aws.String("next"),
				[]string{"make", "model"},
				[]string{"toyota", "hilux"},
			),
			resultPage(nil,
				[]string{"ford", "ranger"},
			),
		},
	}
	r := newTestRunner(client)

	rows, err := r.Rows(context.Background(), "qid-1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"toyota", "hilux"},
		{"ford", "ranger"},
	}, rows)
}

func TestTables(t *testing.T) {
	client := &fakeClient{
		states: []types.QueryExecutionState{types.QueryExecutionStateSucceeded},
		pages: []*athena.GetQueryResultsOutput{
			resultPage(nil,
				[]string{"tab_name"},
				[]string{"maintenance"},
				[]string{"vehicles"},
			),
		},
	}
	r := newTestRunner(client)

	tables, err := r.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"maintenance", "vehicles"}, tables)
	assert.Equal(t, []string{"SHOW TABLES IN vehicle-data"}, client.started)
}

func TestColumns(t *testing.T) {
	client := &fakeClient{
		states: []types.QueryExecutionState{types.QueryExecutionStateSucceeded},
		pages: []*athena.GetQueryResultsOutput{
			resultPage(nil,
				[]string{"col_name\ttype"},
				[]string{"vin\tstring"},
				[]string{"mileage\tbigint"},
				[]string{"# Partition Information"},
			),
		},
	}
	r := newTestRunner(client)

	columns, err := r.Columns(context.Background(), "vehicles")
	require.NoError(t, err)
	assert.Equal(t, []string{"vin", "mileage"}, columns)
	assert.Equal(t, []string{"DESCRIBE vehicle-data.vehicles"}, client.started)
}

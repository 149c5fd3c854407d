// Package athena runs queries on AWS Athena on behalf of athenaq.Engine.
package athena

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/kent-id/athenaq"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/util"
)

const (
	maxAllowedPageSize = 1000 // max allowed by athena
	defaultCatalog     = "AwsDataCatalog"
)

// API is the part of *athena.Client used by Client.
type API interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
	StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

// Config selects where queries run and where their results land.
type Config struct {
	Database       string
	Workgroup      string
	Catalog        string
	OutputLocation string

	// PageSize is the number of rows requested per GetQueryResults call, capped at 1000.
	PageSize int32
}

// Client is an athenaq.QueryService backed by Athena.
type Client struct {
	api API
	cfg Config
}

var (
	_ athenaq.QueryService = (*Client)(nil)
	_ athenaq.Canceler     = (*Client)(nil)
)

// NewClient wraps api. Calls are made exactly once; retrying is left to the engine.
func NewClient(api API, cfg Config) *Client {
	if cfg.Catalog == "" {
		cfg.Catalog = defaultCatalog
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxAllowedPageSize {
		cfg.PageSize = maxAllowedPageSize
	}
	logging.Infof("creating athena client with workgroup: %s, database: %s, catalog: %s, pageSize: %d",
		cfg.Workgroup, cfg.Database, cfg.Catalog, cfg.PageSize)
	return &Client{api: api, cfg: cfg}
}

// NewFromConfig builds the SDK client from awsCfg with its own retries disabled.
func NewFromConfig(awsCfg aws.Config, cfg Config) *Client {
	api := athena.NewFromConfig(awsCfg, func(o *athena.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return NewClient(api, cfg)
}

// Submit starts sqlQuery and returns its QueryExecutionId.
func (c *Client) Submit(ctx context.Context, sqlQuery string) (string, error) {
	input := athena.StartQueryExecutionInput{
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: util.RefNonEmpty(c.cfg.Database),
			Catalog:  util.RefNonEmpty(c.cfg.Catalog),
		},
		WorkGroup:   util.RefNonEmpty(c.cfg.Workgroup),
		QueryString: util.Ref(sqlQuery),
	}
	if c.cfg.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: util.Ref(c.cfg.OutputLocation),
		}
	}

	output, err := c.api.StartQueryExecution(ctx, &input)
	if err != nil {
		return "", err
	}
	id := util.SafeString(output.QueryExecutionId)
	if id == "" {
		return "", fmt.Errorf("athena returned no query execution id")
	}
	return id, nil
}

// Status reports the execution's state, failure reason and result object.
func (c *Client) Status(ctx context.Context, executionID string) (athenaq.ExecutionStatus, error) {
	output, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: util.Ref(executionID),
	})
	if err != nil {
		return athenaq.ExecutionStatus{}, err
	}

	var status athenaq.ExecutionStatus
	execution := output.QueryExecution
	if execution == nil {
		status.State = athenaq.StateSubmitted
		return status, nil
	}
	if execution.Status != nil {
		status.State = mapState(execution.Status.State)
		status.Reason = util.SafeString(execution.Status.StateChangeReason)
		if status.Reason == "" && execution.Status.AthenaError != nil {
			status.Reason = util.SafeString(execution.Status.AthenaError.ErrorMessage)
		}
	} else {
		status.State = athenaq.StateSubmitted
	}
	if execution.ResultConfiguration != nil {
		status.ResultLocation = util.SafeString(execution.ResultConfiguration.OutputLocation)
	}
	return status, nil
}

func mapState(state types.QueryExecutionState) athenaq.ExecutionState {
	switch state {
	case types.QueryExecutionStateRunning:
		return athenaq.StateRunning
	case types.QueryExecutionStateSucceeded:
		return athenaq.StateSucceeded
	case types.QueryExecutionStateFailed:
		return athenaq.StateFailed
	case types.QueryExecutionStateCancelled:
		return athenaq.StateCancelled
	default:
		return athenaq.StateSubmitted
	}
}

// Fetch reads every result page of a finished execution.
func (c *Client) Fetch(ctx context.Context, executionID string) (*athenaq.QueryResult, error) {
	paginator := athena.NewGetQueryResultsPaginator(c.api, &athena.GetQueryResultsInput{
		QueryExecutionId: util.Ref(executionID),
	}, func(o *athena.GetQueryResultsPaginatorOptions) {
		o.Limit = c.cfg.PageSize
	})

	var columns []athenaq.Column
	rows := make([][]athenaq.CellValue, 0)
	page := 1
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if output.ResultSet == nil {
			break
		}
		if columns == nil {
			columns = columnsOf(output.ResultSet.ResultSetMetadata)
		}

		pageRows := output.ResultSet.Rows
		// skip header row if first page results
		if page == 1 && len(pageRows) > 0 {
			pageRows = pageRows[1:]
		}
		for _, row := range pageRows {
			rows = append(rows, castRow(row, columns))
		}

		if paginator.HasMorePages() {
			page++
			logging.Debugf("fetching next page %d results from athena for %s", page, executionID)
		}
	}

	return athenaq.NewQueryResult(columns, rows), nil
}

func columnsOf(metadata *types.ResultSetMetadata) []athenaq.Column {
	columns := make([]athenaq.Column, 0)
	if metadata == nil {
		return columns
	}
	for _, info := range metadata.ColumnInfo {
		columns = append(columns, athenaq.Column{
			Name: util.SafeString(info.Name),
			Type: util.SafeString(info.Type),
		})
	}
	return columns
}

// ResultLocation is the default object Athena writes for executionID under OutputLocation.
func (c *Client) ResultLocation(executionID string) string {
	return strings.TrimSuffix(c.cfg.OutputLocation, "/") + "/" + executionID + ".csv"
}

// Cancel stops a running execution.
func (c *Client) Cancel(ctx context.Context, executionID string) error {
	_, err := c.api.StopQueryExecution(ctx, &athena.StopQueryExecutionInput{
		QueryExecutionId: util.Ref(executionID),
	})
	return err
}

package boards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/core"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/work"
	"github.com/microsoft/azure-devops-go-api/azuredevops/v7/workitemtracking"

	"github.com/siddhartha-04/itcprj/internal/config"
)

const (
	// maxBatchIDs is the per-request id limit of the work items batch endpoint.
	maxBatchIDs = 200
	// maxQueryResults caps list/search results fetched after a WIQL query.
	maxQueryResults = 50
)

// errConnect marks failures to set up the SDK clients. Nothing reached the
// work item endpoints, so these are retried like any read.
var errConnect = errors.New("connect to azure devops")

// witAPI, workAPI and coreAPI are the SDK client methods the assistant uses.
type witAPI interface {
	QueryByWiql(context.Context, workitemtracking.QueryByWiqlArgs) (*workitemtracking.WorkItemQueryResult, error)
	GetWorkItem(context.Context, workitemtracking.GetWorkItemArgs) (*workitemtracking.WorkItem, error)
	GetWorkItems(context.Context, workitemtracking.GetWorkItemsArgs) (*[]workitemtracking.WorkItem, error)
	CreateWorkItem(context.Context, workitemtracking.CreateWorkItemArgs) (*workitemtracking.WorkItem, error)
	UpdateWorkItem(context.Context, workitemtracking.UpdateWorkItemArgs) (*workitemtracking.WorkItem, error)
}

type workAPI interface {
	GetTeamIterations(context.Context, work.GetTeamIterationsArgs) (*[]work.TeamSettingsIteration, error)
	GetIterationWorkItems(context.Context, work.GetIterationWorkItemsArgs) (*work.IterationWorkItems, error)
}

type coreAPI interface {
	GetTeams(context.Context, core.GetTeamsArgs) (*[]core.WebApiTeam, error)
}

type apiSet struct {
	wit  witAPI
	work workAPI
	core coreAPI
}

// Client is a Boards client on the Azure DevOps SDK with per-request timeout
// and retry of transient failures.
type Client struct {
	conn       *azuredevops.Connection
	orgURL     string
	project    string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	dial       func(ctx context.Context) (*apiSet, error)

	mu   sync.Mutex
	apis *apiSet
}

// NewClient creates a Boards client from configuration. The SDK clients are
// created on first use, so startup does not need the backend to be reachable.
func NewClient(cfg config.BoardsConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	conn := azuredevops.NewPatConnection(cfg.OrgURL, cfg.PAT)
	conn.Timeout = &timeout

	c := &Client{
		conn:       conn,
		orgURL:     strings.TrimRight(cfg.OrgURL, "/"),
		project:    cfg.Project,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logger:     logger,
	}
	c.dial = c.dialSDK
	return c
}

func (c *Client) dialSDK(ctx context.Context) (*apiSet, error) {
	wit, err := workitemtracking.NewClient(ctx, c.conn)
	if err != nil {
		return nil, fmt.Errorf("work item tracking client: %w", err)
	}
	wk, err := work.NewClient(ctx, c.conn)
	if err != nil {
		return nil, fmt.Errorf("work client: %w", err)
	}
	cr, err := core.NewClient(ctx, c.conn)
	if err != nil {
		return nil, fmt.Errorf("core client: %w", err)
	}
	return &apiSet{wit: wit, work: wk, core: cr}, nil
}

func (c *Client) connected(ctx context.Context) (*apiSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apis != nil {
		return c.apis, nil
	}
	apis, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConnect, translate(err))
	}
	c.apis = apis
	return apis, nil
}

// call runs fn, retrying with exponential backoff while retryable approves the error.
// Connection setup failures are judged by IsTransient regardless of retryable.
func (c *Client) call(ctx context.Context, op string, retryable func(error) bool, fn func(context.Context, *apiSet) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastErr = c.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}

		retry := retryable
		if errors.Is(lastErr, errConnect) {
			retry = IsTransient
		}
		if !retry(lastErr) || attempt == c.maxRetries || ctx.Err() != nil {
			break
		}

		delay := backoffDelay(c.baseDelay, attempt)
		c.logger.Warn("Boards request failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr)
		if err := sleepContext(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, fn func(context.Context, *apiSet) error) error {
	apis, err := c.connected(ctx)
	if err != nil {
		return err
	}
	return translate(fn(ctx, apis))
}

// translate turns SDK status errors into *StatusError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var wrappedPtr *azuredevops.WrappedError
	if errors.As(err, &wrappedPtr) && wrappedPtr != nil {
		return statusFromWrapped(*wrappedPtr, err)
	}
	var wrapped azuredevops.WrappedError
	if errors.As(err, &wrapped) {
		return statusFromWrapped(wrapped, err)
	}
	return err
}

func statusFromWrapped(we azuredevops.WrappedError, orig error) error {
	if we.StatusCode == nil {
		return orig
	}
	return &StatusError{StatusCode: *we.StatusCode, Body: str(we.Message)}
}

func ref[T any](v T) *T {
	return &v
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intOf(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func uuidString(p *uuid.UUID) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func all[T any](p *[]T) []T {
	if p == nil {
		return nil
	}
	return *p
}

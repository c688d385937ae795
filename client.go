// Package bojstat is a resilient Go client for the Bank of Japan
// stat-search API. It wraps the three read-only endpoints —
// getDataCode, getDataLayer, and getMetadata — behind an orchestration
// layer that turns paginated, capped, and occasionally failing
// endpoints into deterministic, resumable bulk retrievals.
//
//	client, err := bojstat.New()
//	if err != nil { ... }
//	defer client.Close()
//
//	resp, err := client.Timeseries().GetDataCode(ctx, timeseries.DataCodeQuery{
//	    DB:   "CO",
//	    Code: []string{"CO01"},
//	})
//
// When a bulk retrieval fails after partial progress, the returned
// error is a *timeseries.PartialResultError carrying the series
// collected so far and, when checkpointing is enabled, a checkpoint id
// that resumes the call from the exact interruption point via
// timeseries.WithCheckpoint.
package bojstat

import (
	"context"
	"sync/atomic"

	"github.com/itsneelabh/bojstat/core"
	"github.com/itsneelabh/bojstat/timeseries"
)

// Client is the public entry point. It owns the transport and tears it
// down on Close; every API call and in-flight iterator observes the
// closed state.
type Client struct {
	config    *core.Config
	transport *core.Transport
	ts        *TimeSeriesAPI
	closed    atomic.Bool
}

// ClientOption configures a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	config          *core.Config
	checkpointStore core.CheckpointStore
	logger          core.Logger
	telemetry       core.Telemetry
}

// WithConfig supplies a prebuilt configuration. The configuration is
// validated during New.
func WithConfig(config *core.Config) ClientOption {
	return func(o *clientOptions) { o.config = config }
}

// WithCheckpointStore overrides the checkpoint store. Without this
// option an in-memory store is used when checkpointing is enabled; with
// checkpointing disabled no store is used.
func WithCheckpointStore(store core.CheckpointStore) ClientOption {
	return func(o *clientOptions) { o.checkpointStore = store }
}

// WithLogger sets the logger shared by all client components
func WithLogger(logger core.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithTelemetry sets the telemetry provider shared by all client
// components
func WithTelemetry(telemetry core.Telemetry) ClientOption {
	return func(o *clientOptions) { o.telemetry = telemetry }
}

// New creates a client. Without WithConfig the configuration is built
// from defaults and BOJSTAT_* environment variables.
func New(opts ...ClientOption) (*Client, error) {
	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}

	config := options.config
	if config == nil {
		built, err := core.NewConfig()
		if err != nil {
			return nil, err
		}
		config = built
	} else if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := options.logger
	if logger == nil {
		logger = core.NewProductionLogger(config.Logging, "bojstat")
	}
	telemetry := options.telemetry
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	transport := core.NewTransport(config,
		core.WithTransportLogger(logger),
		core.WithTransportTelemetry(telemetry),
	)

	store := options.checkpointStore
	if !config.Checkpoint.Enabled {
		store = nil
	} else if store == nil {
		store = core.NewMemoryCheckpointStore(config.CheckpointTTL())
	}

	service := timeseries.NewService(
		timeseries.NewStrictService(transport),
		timeseries.WithServiceLogger(logger),
		timeseries.WithServiceTelemetry(telemetry),
		timeseries.WithServiceLayerAutoPartition(config.Timeseries.EnableLayerAutoPartition),
		timeseries.WithServiceCheckpoints(store, config.Snapshot()),
	)

	client := &Client{
		config:    config,
		transport: transport,
	}
	client.ts = &TimeSeriesAPI{owner: client, service: service}
	return client, nil
}

// Timeseries returns the guarded timeseries API.
func (c *Client) Timeseries() *TimeSeriesAPI {
	return c.ts
}

// Config returns the client's configuration.
func (c *Client) Config() *core.Config {
	return c.config
}

// Close releases the transport. It is idempotent; calls after Close
// fail with a client-closed error, including in-flight iterators.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.transport.Close()
}

func (c *Client) ensureOpen() error {
	if c.closed.Load() {
		return &core.APIError{Kind: core.ErrClientClosed, Message: "client is already closed"}
	}
	return nil
}

// TimeSeriesAPI guards the orchestrator against use after Close.
type TimeSeriesAPI struct {
	owner   *Client
	service *timeseries.Service
}

// GetDataCode retrieves series by code list. See
// timeseries.Service.GetDataCode for the resilience contract.
func (t *TimeSeriesAPI) GetDataCode(ctx context.Context, query timeseries.DataCodeQuery, opts ...timeseries.CallOption) (*timeseries.DataCodeResponse, error) {
	if err := t.owner.ensureOpen(); err != nil {
		return nil, err
	}
	return t.service.GetDataCode(ctx, query, opts...)
}

// GetDataLayer retrieves series by layer filter. See
// timeseries.Service.GetDataLayer for the resilience contract.
func (t *TimeSeriesAPI) GetDataLayer(ctx context.Context, query timeseries.DataLayerQuery, opts ...timeseries.CallOption) (*timeseries.DataLayerResponse, error) {
	if err := t.owner.ensureOpen(); err != nil {
		return nil, err
	}
	return t.service.GetDataLayer(ctx, query, opts...)
}

// GetMetadata retrieves the metadata catalog of a database.
func (t *TimeSeriesAPI) GetMetadata(ctx context.Context, query timeseries.MetadataQuery) (*timeseries.MetadataResponse, error) {
	if err := t.owner.ensureOpen(); err != nil {
		return nil, err
	}
	return t.service.GetMetadata(ctx, query)
}

// IterDataCode streams one response per HTTP page. A client closed
// mid-iteration fails the following Next call and releases the inner
// page iterator; a page fetched concurrently with Close is not
// yielded.
func (t *TimeSeriesAPI) IterDataCode(query timeseries.DataCodeQuery) *GuardedDataCodeIterator {
	return &GuardedDataCodeIterator{owner: t.owner, inner: t.service.IterDataCode(query)}
}

// IterDataLayer streams one response per HTTP page with the same
// close semantics as IterDataCode.
func (t *TimeSeriesAPI) IterDataLayer(query timeseries.DataLayerQuery) *GuardedDataLayerIterator {
	return &GuardedDataLayerIterator{owner: t.owner, inner: t.service.IterDataLayer(query)}
}

// GuardedDataCodeIterator checks the client state before and after
// every page so a consumer cannot observe a post-close yield.
type GuardedDataCodeIterator struct {
	owner *Client
	inner *timeseries.DataCodeIterator
	err   error
}

// Next advances to the next page.
func (it *GuardedDataCodeIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := it.owner.ensureOpen(); err != nil {
		it.fail(err)
		return false
	}
	if !it.inner.Next(ctx) {
		return false
	}
	if err := it.owner.ensureOpen(); err != nil {
		it.fail(err)
		return false
	}
	return true
}

// Response returns the page fetched by the last successful Next call.
func (it *GuardedDataCodeIterator) Response() *timeseries.DataCodeResponse {
	return it.inner.Response()
}

// Err returns the terminal error of the iteration, if any.
func (it *GuardedDataCodeIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Err()
}

// Close releases the inner iterator. Close is idempotent.
func (it *GuardedDataCodeIterator) Close() error {
	return it.inner.Close()
}

func (it *GuardedDataCodeIterator) fail(err error) {
	it.err = err
	it.inner.Close()
}

// GuardedDataLayerIterator is the layer-query counterpart of
// GuardedDataCodeIterator.
type GuardedDataLayerIterator struct {
	owner *Client
	inner *timeseries.DataLayerIterator
	err   error
}

// Next advances to the next page.
func (it *GuardedDataLayerIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := it.owner.ensureOpen(); err != nil {
		it.fail(err)
		return false
	}
	if !it.inner.Next(ctx) {
		return false
	}
	if err := it.owner.ensureOpen(); err != nil {
		it.fail(err)
		return false
	}
	return true
}

// Response returns the page fetched by the last successful Next call.
func (it *GuardedDataLayerIterator) Response() *timeseries.DataLayerResponse {
	return it.inner.Response()
}

// Err returns the terminal error of the iteration, if any.
func (it *GuardedDataLayerIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Err()
}

// Close releases the inner iterator. Close is idempotent.
func (it *GuardedDataLayerIterator) Close() error {
	return it.inner.Close()
}

func (it *GuardedDataLayerIterator) fail(err error) {
	it.err = err
	it.inner.Close()
}

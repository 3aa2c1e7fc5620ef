package transport

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"voucher-node/internal/logger"
)

// Endpoint is one independent record store. Implementations handle their own
// connection state; the pool treats every call as side-effect-free from its
// own perspective.
type Endpoint interface {
	Name() string
	Publish(ctx context.Context, rec Record) error
	Query(ctx context.Context, sel Selector) ([]Record, error)
}

// Publisher is the contract the synchronizers consume. Publish reports true
// when at least one endpoint acknowledged. Query fans out to every endpoint,
// dedups by record ID, and guarantees no ordering.
type Publisher interface {
	Publish(ctx context.Context, rec Record) (bool, error)
	Query(ctx context.Context, sel Selector) ([]Record, error)
}

// ErrNoEndpoints is returned when the pool has nothing to talk to.
var ErrNoEndpoints = errors.New("no endpoints configured")

// Pool fans a publish or query out to all endpoints in parallel and fans the
// results back in. Each per-endpoint call is bounded by the pool timeout; the
// caller's context bounds the aggregate wait, so one hung endpoint can never
// stall the whole operation. Replies arriving after the caller's deadline are
// simply ignored.
type Pool struct {
	endpoints    []Endpoint
	timeout      time.Duration
	queryTimeout time.Duration
}

// NewPool creates a pool with a per-endpoint timeout, applied to both
// publishes and queries until SetQueryTimeout overrides the latter.
func NewPool(timeout time.Duration, endpoints ...Endpoint) *Pool {
	return &Pool{endpoints: endpoints, timeout: timeout, queryTimeout: timeout}
}

// SetQueryTimeout gives queries their own per-endpoint bound. Queries fan out
// wider than publishes and usually deserve a little more headroom.
func (p *Pool) SetQueryTimeout(d time.Duration) {
	if d > 0 {
		p.queryTimeout = d
	}
}

// Publish sends the record to every endpoint and returns true once any of
// them acked. When every endpoint fails, the per-endpoint errors come back
// aggregated.
func (p *Pool) Publish(ctx context.Context, rec Record) (bool, error) {
	if len(p.endpoints) == 0 {
		return false, ErrNoEndpoints
	}
	// Buffered so abandoned goroutines can always deliver and exit.
	acks := make(chan error, len(p.endpoints))
	for _, ep := range p.endpoints {
		go func(ep Endpoint) {
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			err := ep.Publish(cctx, rec)
			if err != nil {
				logger.Log.Warnf("publish to %s failed: %v", ep.Name(), err)
			}
			acks <- err
		}(ep)
	}

	acked := 0
	var merr *multierror.Error
	for received := 0; received < len(p.endpoints); received++ {
		select {
		case err := <-acks:
			if err == nil {
				acked++
			} else {
				merr = multierror.Append(merr, err)
			}
		case <-ctx.Done():
			if acked > 0 {
				return true, nil
			}
			return false, errors.Wrap(ctx.Err(), "publish timed out with no acknowledgement")
		}
	}
	if acked > 0 {
		return true, nil
	}
	return false, errors.Wrap(merr.ErrorOrNil(), "all endpoints rejected publish")
}

// Query collects records from every endpoint that answers in time, dedups
// them by ID, and returns whatever subset was reachable. An empty result from
// responsive endpoints is a successful "not found"; zero responsive endpoints
// is a transport failure.
func (p *Pool) Query(ctx context.Context, sel Selector) ([]Record, error) {
	if len(p.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	type reply struct {
		records []Record
		err     error
	}
	replies := make(chan reply, len(p.endpoints))
	for _, ep := range p.endpoints {
		go func(ep Endpoint) {
			cctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
			defer cancel()
			recs, err := ep.Query(cctx, sel)
			if err != nil {
				logger.Log.Warnf("query to %s failed: %v", ep.Name(), err)
			}
			replies <- reply{records: recs, err: err}
		}(ep)
	}

	merged := make(map[string]Record)
	responded := 0
	var merr *multierror.Error
	var order []string

collect:
	for received := 0; received < len(p.endpoints); received++ {
		select {
		case rep := <-replies:
			if rep.err != nil {
				merr = multierror.Append(merr, rep.err)
				continue
			}
			responded++
			for _, rec := range rep.records {
				if _, seen := merged[rec.ID]; !seen {
					merged[rec.ID] = rec
					order = append(order, rec.ID)
				}
			}
		case <-ctx.Done():
			// Late replies are abandoned, not aborted.
			break collect
		}
	}

	if responded == 0 {
		if err := merr.ErrorOrNil(); err != nil {
			return nil, errors.Wrap(err, "query failed on every endpoint")
		}
		return nil, errors.New("query timed out with zero responses")
	}
	out := make([]Record, 0, len(merged))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out, nil
}

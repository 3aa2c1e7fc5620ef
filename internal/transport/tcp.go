package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Wire ops understood by the relay server.
const (
	OpPublish = "publish"
	OpQuery   = "query"
)

// WireRequest is one framed request to a relay.
type WireRequest struct {
	Op       string    `json:"op"`
	Record   *Record   `json:"record,omitempty"`
	Selector *Selector `json:"selector,omitempty"`
}

// WireResponse is the relay's answer.
type WireResponse struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Records []Record `json:"records,omitempty"`
}

const defaultDialTimeout = 2 * time.Second

// TCPEndpoint talks JSON frames to a single relay server. One short-lived
// connection per call; the pool handles parallelism and partial failure.
type TCPEndpoint struct {
	name    string
	address string
}

// NewTCPEndpoint creates an endpoint for a relay at the given address.
func NewTCPEndpoint(name, address string) *TCPEndpoint {
	return &TCPEndpoint{name: name, address: address}
}

func (t *TCPEndpoint) Name() string { return t.name }

// Publish sends the record and waits for the relay's ack.
func (t *TCPEndpoint) Publish(ctx context.Context, rec Record) error {
	resp, err := t.roundTrip(ctx, WireRequest{Op: OpPublish, Record: &rec})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("relay %s refused publish: %s", t.name, resp.Error)
	}
	return nil
}

// Query sends the selector and returns whatever the relay holds for it.
func (t *TCPEndpoint) Query(ctx context.Context, sel Selector) ([]Record, error) {
	resp, err := t.roundTrip(ctx, WireRequest{Op: OpQuery, Selector: &sel})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("relay %s refused query: %s", t.name, resp.Error)
	}
	return resp.Records, nil
}

func (t *TCPEndpoint) roundTrip(ctx context.Context, req WireRequest) (*WireResponse, error) {
	conn, err := net.DialTimeout("tcp", t.address, dialTimeout(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", t.address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(&req); err != nil {
		return nil, fmt.Errorf("failed to encode and send request to %s: %v", t.address, err)
	}
	var resp WireResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %v", t.address, err)
	}
	return &resp, nil
}

func dialTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < defaultDialTimeout {
			return remaining
		}
	}
	return defaultDialTimeout
}

package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Fieldsync.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync triggers an immediate sync run.
func (c *Client) Sync() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.client.Call("Fieldsync.Sync", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue adds a mutation to the queue.
func (c *Client) Enqueue(req EnqueueRequest) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.client.Call("Fieldsync.Enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Fieldsync.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueStats returns aggregate queue counters.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	var resp QueueStatsResponse
	if err := c.client.Call("Fieldsync.QueueStats", QueueStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry resets failed items back to pending.
func (c *Client) QueueRetry(ids []string) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	req := QueueRetryRequest{IDs: ids}
	if err := c.client.Call("Fieldsync.QueueRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearFailed removes failed items from the queue.
func (c *Client) QueueClearFailed() (*QueueClearFailedResponse, error) {
	var resp QueueClearFailedResponse
	if err := c.client.Call("Fieldsync.QueueClearFailed", QueueClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to shut down background processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Fieldsync.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

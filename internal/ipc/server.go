package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Fieldsync", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func convertQueueItem(item *queue.Item) QueueItem {
	return QueueItem{
		ID:           item.ID,
		TableName:    item.TableName,
		RecordID:     item.RecordID,
		Operation:    string(item.Operation),
		Data:         item.Data,
		Status:       string(item.Status),
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		ErrorMessage: item.ErrorMessage,
		Priority:     item.Priority,
		CreatedAt:    item.CreatedAt,
	}
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Syncing = status.Syncing
	resp.Online = status.Online
	resp.LastSync = status.LastSync
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.QueueStats = map[string]int{
		"total":   status.Queue.Total,
		"pending": status.Queue.Pending,
		"syncing": status.Queue.Syncing,
		"failed":  status.Queue.Failed,
	}
	return nil
}

func (s *service) Sync(_ SyncRequest, resp *SyncResponse) error {
	s.log().Debug("sync requested")
	result := s.daemon.Sync(s.ctx)
	resp.Status = string(result.Status)
	resp.Synced = result.Synced
	resp.Failed = result.Failed
	resp.Errors = result.Errors
	s.log().Info("sync triggered via IPC",
		logging.String(logging.FieldEventType, "sync_trigger"),
		logging.String("result", resp.Status))
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	op, ok := queue.ParseOperation(req.Operation)
	if !ok {
		return fmt.Errorf("unknown operation %q", req.Operation)
	}
	item, err := s.daemon.Enqueue(s.ctx, queue.Spec{
		TableName: req.TableName,
		RecordID:  req.RecordID,
		Operation: op,
		Data:      req.Data,
		Priority:  req.Priority,
	})
	if err != nil {
		return err
	}
	resp.Item = convertQueueItem(item)
	s.log().Info("item enqueued via IPC",
		logging.String(logging.FieldEventType, "enqueue"),
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldTable, item.TableName))
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make(map[queue.Status]struct{}, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses[parsed] = struct{}{}
	}
	items, err := s.daemon.ListQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[item.Status]; !ok {
				continue
			}
		}
		resp.Items = append(resp.Items, convertQueueItem(item))
	}
	return nil
}

func (s *service) QueueStats(_ QueueStatsRequest, resp *QueueStatsResponse) error {
	stats, err := s.daemon.QueueStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = stats.Total
	resp.Pending = stats.Pending
	resp.Syncing = stats.Syncing
	resp.Failed = stats.Failed
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested", logging.Int("item_count", len(req.IDs)))
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int("updated_count", updated))
	return nil
}

func (s *service) QueueClearFailed(_ QueueClearFailedRequest, resp *QueueClearFailedResponse) error {
	s.log().Debug("queue clear failed requested")
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue failed items cleared",
		logging.String(logging.FieldEventType, "queue_clear_failed"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

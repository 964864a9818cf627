package lobby

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"majdl/internal/envelope"
	"majdl/internal/logging"
	"majdl/internal/lqproto"
	"majdl/internal/services"
)

// Frame kinds, carried in the first byte of every websocket message.
const (
	frameNotify   byte = 0x01
	frameRequest  byte = 0x02
	frameResponse byte = 0x03
)

const rpcStage = "rpc"

// Conn is the subset of *websocket.Conn the RPC client needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// RemoteError is an error code returned by the lobby inside a response.
type RemoteError struct {
	Method string
	Code   uint32
	Params []string
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s: lobby error %d", e.Method, e.Code)
	if len(e.Params) > 0 {
		msg += " (" + strings.Join(e.Params, ", ") + ")"
	}
	return msg
}

// Unwrap classifies lobby errors as transport failures.
func (e *RemoteError) Unwrap() error { return services.ErrTransport }

// RPCClient issues one request at a time over a websocket and waits for the
// response with the matching index. Notifications are skipped.
type RPCClient struct {
	conn    Conn
	codec   *envelope.Codec
	catalog *lqproto.Catalog
	logger  *slog.Logger

	mu   sync.Mutex
	next uint16
}

// Dial opens a websocket to endpoint.
func Dial(ctx context.Context, endpoint string, codec *envelope.Codec, logger *slog.Logger) (*RPCClient, error) {
	header := http.Header{}
	header.Set("Origin", originFor(endpoint))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, rpcStage, "dial", endpoint, err)
	}
	return NewRPCClient(conn, codec, logger), nil
}

// NewRPCClient wraps an established connection.
func NewRPCClient(conn Conn, codec *envelope.Codec, logger *slog.Logger) *RPCClient {
	if codec == nil {
		codec = envelope.NewCodec(nil, logger)
	}
	return &RPCClient{
		conn:    conn,
		codec:   codec,
		catalog: codec.Catalog(),
		logger:  logging.NewComponentLogger(logger, "rpc"),
		next:    1,
	}
}

// Call invokes Lobby.<method> with req and decodes the reply into res. It
// returns the raw response payload. A reply carrying a non-zero error code
// yields a *RemoteError.
func (c *RPCClient) Call(ctx context.Context, method string, req, res protoreflect.Message) ([]byte, error) {
	md, err := c.catalog.Method("Lobby", method)
	if err != nil {
		return nil, err
	}
	payload, err := proto.Marshal(req.Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	wrapped, err := c.codec.Encode(envelope.Envelope{Name: "." + string(md.FullName()), Payload: payload})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	index := c.next
	c.next++
	if c.next == 0 {
		c.next = 1
	}

	frame := make([]byte, 3, 3+len(wrapped))
	frame[0] = frameRequest
	binary.LittleEndian.PutUint16(frame[1:], index)
	frame = append(frame, wrapped...)

	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, services.Wrap(services.ErrTransport, rpcStage, method, "send request", err)
	}
	c.logger.Debug("rpc request sent", logging.String("method", method), logging.Int("index", int(index)))

	body, err := c.await(ctx, method, index)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(body, res.Interface()); err != nil {
		return nil, services.Wrap(services.ErrTransport, rpcStage, method, "decode response", err)
	}
	if remote := remoteError(method, res); remote != nil {
		return nil, remote
	}
	return body, nil
}

func (c *RPCClient) await(ctx context.Context, method string, index uint16) ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, services.Wrap(services.ErrTransport, rpcStage, method, "await response", errors.Join(ctxErr, err))
			}
			return nil, services.Wrap(services.ErrTransport, rpcStage, method, "await response", err)
		}
		if kind != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		switch data[0] {
		case frameNotify:
			c.logger.Debug("rpc notification ignored", logging.Int("bytes", len(data)))
			continue
		case frameResponse:
			if len(data) < 3 {
				return nil, services.Wrap(services.ErrTransport, rpcStage, method, "short response frame", nil)
			}
			if got := binary.LittleEndian.Uint16(data[1:3]); got != index {
				c.logger.Debug("rpc response for another request ignored",
					logging.Int("index", int(got)), logging.Int("want", int(index)))
				continue
			}
			env, err := c.codec.Decode(data[3:])
			if err != nil {
				return nil, services.Wrap(services.ErrTransport, rpcStage, method, "decode response envelope", err)
			}
			return env.Payload, nil
		default:
			return nil, services.Wrap(services.ErrTransport, rpcStage, method, fmt.Sprintf("unexpected frame kind 0x%02x", data[0]), nil)
		}
	}
}

// Close sends a close frame and releases the connection.
func (c *RPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func remoteError(method string, res protoreflect.Message) error {
	errMsg := lqproto.GetMessage(res, "error")
	if errMsg == nil {
		return nil
	}
	code := lqproto.GetUint32(errMsg, "code")
	if code == 0 {
		return nil
	}
	remote := &RemoteError{Method: method, Code: code}
	fd := errMsg.Descriptor().Fields().ByName("str_params")
	if fd != nil {
		params := errMsg.Get(fd).List()
		for i := 0; i < params.Len(); i++ {
			remote.Params = append(remote.Params, params.Get(i).String())
		}
	}
	return remote
}

func originFor(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimSuffix(strings.TrimPrefix(endpoint, "wss://"), "/")
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimSuffix(strings.TrimPrefix(endpoint, "ws://"), "/")
	default:
		return endpoint
	}
}

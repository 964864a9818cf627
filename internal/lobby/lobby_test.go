package lobby

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"majdl/internal/config"
	"majdl/internal/envelope"
	"majdl/internal/logging"
	"majdl/internal/lqproto"
	"majdl/internal/services"
)

type stubCaller struct {
	t        *testing.T
	handlers map[string]func(req protoreflect.Message) (lqproto.Fields, error)
	requests map[string]protoreflect.Message
	closed   bool
}

func newStubCaller(t *testing.T) *stubCaller {
	return &stubCaller{
		t:        t,
		handlers: map[string]func(protoreflect.Message) (lqproto.Fields, error){},
		requests: map[string]protoreflect.Message{},
	}
}

func (c *stubCaller) Call(_ context.Context, method string, req, res protoreflect.Message) ([]byte, error) {
	c.requests[method] = req
	handler, ok := c.handlers[method]
	if !ok {
		c.t.Fatalf("unexpected call %s", method)
	}
	fields, err := handler(req)
	if err != nil {
		return nil, err
	}
	if err := lqproto.Fill(res, fields); err != nil {
		c.t.Fatalf("fill %s: %v", method, err)
	}
	return proto.Marshal(res.Interface())
}

func (c *stubCaller) Close() error {
	c.closed = true
	return nil
}

func newTestSession(c *stubCaller) *Session {
	cfg := config.Default()
	return NewSession(c, nil, "0.11.42.w", ProfileFromConfig(&cfg), logging.NewNop())
}

func TestSessionListRecords(t *testing.T) {
	caller := newStubCaller(t)
	caller.handlers["fetchGameRecordList"] = func(req protoreflect.Message) (lqproto.Fields, error) {
		if lqproto.GetUint32(req, "start") != 1 || lqproto.GetUint32(req, "count") != 30 {
			t.Errorf("unexpected paging %d/%d", lqproto.GetUint32(req, "start"), lqproto.GetUint32(req, "count"))
		}
		return lqproto.Fields{"record_list": []lqproto.Fields{{"uuid": "r1"}, {"uuid": "r2"}}}, nil
	}
	ids, err := newTestSession(caller).ListRecords(context.Background(), 1, 30)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSessionFetchRecordRendersResponse(t *testing.T) {
	caller := newStubCaller(t)
	caller.handlers["fetchGameRecord"] = func(req protoreflect.Message) (lqproto.Fields, error) {
		if got := lqproto.GetString(req, "client_version_string"); got != "0.11.42.w" {
			t.Errorf("client version = %q", got)
		}
		return lqproto.Fields{
			"head":     lqproto.Fields{"uuid": lqproto.GetString(req, "game_uuid"), "start_time": 1700000000},
			"data_url": "https://cdn.example/detail",
		}, nil
	}
	record, err := newTestSession(caller).FetchRecord(context.Background(), "201-abc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if record.ID != "201-abc" || len(record.Raw) == 0 {
		t.Fatalf("unexpected record %+v", record)
	}
	if got := gjson.GetBytes(record.JSON, "dataUrl").String(); got != "https://cdn.example/detail" {
		t.Fatalf("dataUrl = %q in %s", got, record.JSON)
	}
	if got := gjson.GetBytes(record.JSON, "head.startTime").Int(); got != 1700000000 {
		t.Fatalf("head.startTime = %d", got)
	}
	if gjson.GetBytes(record.JSON, "data").Exists() {
		t.Fatal("empty data should be omitted")
	}
}

func TestSessionLoginHashesPassword(t *testing.T) {
	caller := newStubCaller(t)
	caller.handlers["login"] = func(req protoreflect.Message) (lqproto.Fields, error) {
		return lqproto.Fields{"account_id": 42, "access_token": "issued"}, nil
	}
	token, err := newTestSession(caller).Login(context.Background(), "player", "hunter2", "key-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "issued" {
		t.Fatalf("token = %q", token)
	}
	req := caller.requests["login"]
	if got := lqproto.GetString(req, "password"); got != "c918b68f09f4c3ee54c3fa118b11e19c24644afc630fbb23104ccbc26086b0b9" {
		t.Fatalf("password = %q", got)
	}
	if !lqproto.GetBool(req, "gen_access_token") {
		t.Fatal("gen_access_token not set")
	}
	device := lqproto.GetMessage(req, "device")
	if lqproto.GetString(device, "device_type") != "pc" || lqproto.GetString(device, "browser") != "safari" {
		t.Fatalf("unexpected device profile")
	}
	if lqproto.GetString(req, "random_key") != "key-1" || lqproto.GetString(req, "client_version") != "0.11.42.w" {
		t.Fatal("random key or client version missing")
	}
}

func TestSessionLoginRejectedIsAuthentication(t *testing.T) {
	caller := newStubCaller(t)
	caller.handlers["oauth2Login"] = func(protoreflect.Message) (lqproto.Fields, error) {
		return nil, &RemoteError{Method: "oauth2Login", Code: 151}
	}
	err := newTestSession(caller).LoginWithToken(context.Background(), "tok", "key")
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestSessionLoginNetworkFailureIsNotAuthentication(t *testing.T) {
	caller := newStubCaller(t)
	caller.handlers["oauth2Check"] = func(protoreflect.Message) (lqproto.Fields, error) {
		return nil, services.Wrap(services.ErrTransport, "rpc", "oauth2Check", "send request", errors.New("broken pipe"))
	}
	_, err := newTestSession(caller).CheckToken(context.Background(), "tok")
	if errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("network failure classified as authentication: %v", err)
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSessionClose(t *testing.T) {
	caller := newStubCaller(t)
	if err := newTestSession(caller).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !caller.closed {
		t.Fatal("rpc client not closed")
	}
}

func TestConnectDiscoversAndDials(t *testing.T) {
	_, cfg := newDiscoveryServer(t, `{"servers":["gw1.example:443"]}`)

	var dialed string
	fakeDial := func(o *connectOptions) {
		o.dial = func(_ context.Context, endpoint string, codec *envelope.Codec, _ *slog.Logger) (*RPCClient, error) {
			dialed = endpoint
			return NewRPCClient(&fakeConn{}, codec, logging.NewNop()), nil
		}
	}
	session, err := Connect(context.Background(), cfg, logging.NewNop(), fakeDial)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	if dialed != "wss://gw1.example:443/" {
		t.Fatalf("dialed %q", dialed)
	}
	if session.Version() != "0.11.42.w" {
		t.Fatalf("version = %q", session.Version())
	}
}

package lobby

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/protobuf/reflect/protoreflect"

	"majdl/internal/config"
	"majdl/internal/envelope"
	"majdl/internal/logging"
	"majdl/internal/lqproto"
	"majdl/internal/services"
)

// caller is the RPC surface a Session drives.
type caller interface {
	Call(ctx context.Context, method string, req, res protoreflect.Message) ([]byte, error)
	Close() error
}

// Profile is the client identity sent with every login request.
type Profile struct {
	DeviceType        string
	Browser           string
	CurrencyPlatforms []uint32
	PasswordHMACKey   string
}

// ProfileFromConfig extracts the login profile from the [lobby] section.
func ProfileFromConfig(cfg *config.Config) Profile {
	return Profile{
		DeviceType:        cfg.Lobby.DeviceType,
		Browser:           cfg.Lobby.Browser,
		CurrencyPlatforms: append([]uint32(nil), cfg.Lobby.CurrencyPlatforms...),
		PasswordHMACKey:   cfg.Lobby.PasswordHMACKey,
	}
}

// GameRecord is one fetched record: the response rendered as JSON and the
// raw response bytes as they came off the wire.
type GameRecord struct {
	ID   string
	JSON []byte
	Raw  []byte
}

// Session is an open lobby connection.
type Session struct {
	rpc     caller
	codec   *envelope.Codec
	catalog *lqproto.Catalog
	version string
	profile Profile
	logger  *slog.Logger
}

// ConnectOption customises Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	discovery []DiscoveryOption
	codec     *envelope.Codec
	dial      func(ctx context.Context, endpoint string, codec *envelope.Codec, logger *slog.Logger) (*RPCClient, error)
}

// WithDiscoveryOptions forwards options to the Discoverer.
func WithDiscoveryOptions(opts ...DiscoveryOption) ConnectOption {
	return func(o *connectOptions) { o.discovery = append(o.discovery, opts...) }
}

// WithCodec sets the codec used for RPC envelopes and record rendering.
func WithCodec(codec *envelope.Codec) ConnectOption {
	return func(o *connectOptions) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// Connect discovers a gateway and opens a session to it.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...ConnectOption) (*Session, error) {
	options := connectOptions{dial: Dial}
	for _, opt := range opts {
		opt(&options)
	}
	if options.codec == nil {
		options.codec = envelope.NewCodec(nil, logger)
	}
	logger = logging.NewComponentLogger(logger, "lobby")

	endpoint, err := NewDiscoverer(cfg, options.discovery...).Discover(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("gateway selected",
		logging.String("endpoint", endpoint.URL),
		logging.String("client_version", endpoint.Version),
		logging.Int("gateways", len(endpoint.Servers)),
	)

	client, err := options.dial(ctx, endpoint.URL, options.codec, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("lobby connected", logging.String("endpoint", endpoint.URL))
	return NewSession(client, options.codec, endpoint.Version, ProfileFromConfig(cfg), logger), nil
}

// NewSession wraps an established RPC client.
func NewSession(rpc caller, codec *envelope.Codec, version string, profile Profile, logger *slog.Logger) *Session {
	if codec == nil {
		codec = envelope.NewCodec(nil, logger)
	}
	return &Session{
		rpc:     rpc,
		codec:   codec,
		catalog: codec.Catalog(),
		version: version,
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "lobby"),
	}
}

// Version is the client version string obtained during discovery.
func (s *Session) Version() string {
	return s.version
}

// Close ends the session.
func (s *Session) Close() error {
	if s == nil || s.rpc == nil {
		return nil
	}
	return s.rpc.Close()
}

// ListRecords returns the record ids of one page, in server order.
func (s *Session) ListRecords(ctx context.Context, start, count int) ([]string, error) {
	res, _, err := s.call(ctx, "fetchGameRecordList", lqproto.Fields{
		"start": uint32(start),
		"count": uint32(count),
	})
	if err != nil {
		return nil, err
	}
	records := lqproto.GetMessages(res, "record_list")
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, lqproto.GetString(record, "uuid"))
	}
	return ids, nil
}

// FetchRecord downloads the record with the given id.
func (s *Session) FetchRecord(ctx context.Context, id string) (GameRecord, error) {
	res, raw, err := s.call(ctx, "fetchGameRecord", lqproto.Fields{
		"game_uuid":             id,
		"client_version_string": s.version,
	})
	if err != nil {
		return GameRecord{}, err
	}
	rendered, err := s.codec.MessageJSON(ctx, res)
	if err != nil {
		return GameRecord{}, services.Wrap(services.ErrValidation, "fetch", "render", id, err)
	}
	return GameRecord{ID: id, JSON: rendered, Raw: raw}, nil
}

// Login authenticates with an account name and password and asks the lobby
// for a reusable access token, which is returned.
func (s *Session) Login(ctx context.Context, account, password, randomKey string) (string, error) {
	res, _, err := s.call(ctx, "login", lqproto.Fields{
		"account":            account,
		"password":           HashPassword(s.profile.PasswordHMACKey, password),
		"device":             s.device(),
		"random_key":         randomKey,
		"client_version":     s.version,
		"gen_access_token":   true,
		"currency_platforms": s.profile.CurrencyPlatforms,
	})
	if err != nil {
		return "", rejected("login", "password login rejected", err)
	}
	s.logger.Info("logged in",
		logging.String(logging.FieldEventType, "login_succeeded"),
		logging.Int("account_id", int(lqproto.GetUint32(res, "account_id"))),
	)
	return lqproto.GetString(res, "access_token"), nil
}

// CheckToken asks the lobby whether token still maps to an account.
func (s *Session) CheckToken(ctx context.Context, token string) (bool, error) {
	res, _, err := s.call(ctx, "oauth2Check", lqproto.Fields{"access_token": token})
	if err != nil {
		return false, rejected("oauth2Check", "token check rejected", err)
	}
	return lqproto.GetBool(res, "has_account"), nil
}

// LoginWithToken authenticates with a stored access token.
func (s *Session) LoginWithToken(ctx context.Context, token, randomKey string) error {
	res, _, err := s.call(ctx, "oauth2Login", lqproto.Fields{
		"access_token":       token,
		"device":             s.device(),
		"random_key":         randomKey,
		"client_version":     s.version,
		"currency_platforms": s.profile.CurrencyPlatforms,
	})
	if err != nil {
		return rejected("oauth2Login", "token login rejected", err)
	}
	s.logger.Info("logged in",
		logging.String(logging.FieldEventType, "token_login_succeeded"),
		logging.Int("account_id", int(lqproto.GetUint32(res, "account_id"))),
	)
	return nil
}

// Logout ends the authenticated session on the server side.
func (s *Session) Logout(ctx context.Context) error {
	_, _, err := s.call(ctx, "logout", lqproto.Fields{})
	return err
}

func (s *Session) device() lqproto.Fields {
	return lqproto.Fields{
		"device_type": s.profile.DeviceType,
		"browser":     s.profile.Browser,
	}
}

func (s *Session) call(ctx context.Context, method string, fields lqproto.Fields) (protoreflect.Message, []byte, error) {
	md, err := s.catalog.Method("Lobby", method)
	if err != nil {
		return nil, nil, err
	}
	req, err := s.catalog.Input(md)
	if err != nil {
		return nil, nil, err
	}
	if err := lqproto.Fill(req, fields); err != nil {
		return nil, nil, fmt.Errorf("build %s request: %w", method, err)
	}
	res, err := s.catalog.Output(md)
	if err != nil {
		return nil, nil, err
	}
	raw, err := s.rpc.Call(ctx, method, req, res)
	if err != nil {
		return nil, nil, err
	}
	return res, raw, nil
}

// rejected tags lobby error codes on login calls as authentication failures.
// Network failures pass through unchanged.
func rejected(operation, message string, err error) error {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return services.Wrap(services.ErrAuthentication, "login", operation, message, err)
	}
	return err
}

// HashPassword returns the hex HMAC-SHA256 of password under key, which is
// what the lobby expects in place of the plain password.
func HashPassword(key, password string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

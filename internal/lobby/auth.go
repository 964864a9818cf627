package lobby

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"majdl/internal/logging"
	"majdl/internal/services"
)

// SessionState is the persisted login state. The random key is paired with
// the token: a token login must present the key it was issued with.
type SessionState struct {
	RandomKey   string `json:"random_key"`
	AccessToken string `json:"access_token"`
}

// CredentialStore abstracts persistence for SessionState.
type CredentialStore interface {
	Load() (SessionState, error)
	Save(SessionState) error
}

// FileCredentialStore writes session state to a JSON file on disk.
type FileCredentialStore struct {
	path string
}

// NewFileCredentialStore builds a FileCredentialStore at path.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Path returns the backing file.
func (s *FileCredentialStore) Path() string {
	return s.path
}

// Load reads session state from disk. A missing file resolves to an empty state.
func (s *FileCredentialStore) Load() (SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SessionState{}, nil
		}
		return SessionState{}, fmt.Errorf("read session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return SessionState{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}

// Save persists session state with owner-only permissions.
func (s *FileCredentialStore) Save(state SessionState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure session state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

// Prompter collects interactive credentials.
type Prompter interface {
	Account() (string, error)
	Password() (string, error)
}

// TerminalPrompter reads the account name from a line reader and the
// password from the terminal with echo disabled.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	tty *os.File
}

// NewTerminalPrompter prompts on out and reads from tty.
func NewTerminalPrompter(tty *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(tty), out: out, tty: tty}
}

// Interactive reports whether the prompter is attached to a terminal.
func (p *TerminalPrompter) Interactive() bool {
	if p == nil || p.tty == nil {
		return false
	}
	fd := p.tty.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Account prompts for the account name.
func (p *TerminalPrompter) Account() (string, error) {
	if !p.Interactive() {
		return "", services.Wrap(services.ErrAuthentication, "login", "prompt", "interactive login requires a terminal", nil)
	}
	fmt.Fprint(p.out, "Username: ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read account: %w", err)
	}
	account := strings.TrimSpace(line)
	if account == "" {
		return "", services.Wrap(services.ErrAuthentication, "login", "prompt", "account name is empty", nil)
	}
	return account, nil
}

// Password prompts for the password without echo.
func (p *TerminalPrompter) Password() (string, error) {
	if !p.Interactive() {
		return "", services.Wrap(services.ErrAuthentication, "login", "prompt", "interactive login requires a terminal", nil)
	}
	fmt.Fprint(p.out, "Password: ")
	secret, err := term.ReadPassword(int(p.tty.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(secret), nil
}

// loginSession is the part of Session the Authenticator drives.
type loginSession interface {
	CheckToken(ctx context.Context, token string) (bool, error)
	LoginWithToken(ctx context.Context, token, randomKey string) error
	Login(ctx context.Context, account, password, randomKey string) (string, error)
}

// Authenticator logs a session in, preferring the stored token and falling
// back to an interactive password login.
type Authenticator struct {
	session  loginSession
	store    CredentialStore
	prompter Prompter
	newKey   func() (string, error)
	logger   *slog.Logger
}

// NewAuthenticator wires an Authenticator. prompter may be nil when no
// interactive fallback is available.
func NewAuthenticator(session loginSession, store CredentialStore, prompter Prompter, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		session:  session,
		store:    store,
		prompter: prompter,
		newKey:   newRandomKey,
		logger:   logging.NewComponentLogger(logger, "auth"),
	}
}

// Authenticate tries the stored token first. A rejected or absent token
// leads to an interactive login whose new token is persisted.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	state, err := a.store.Load()
	if err != nil {
		logging.WarnWithContext(a.logger, "session state unreadable", "session_state_unreadable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the session file or run majdl login"),
			logging.String(logging.FieldImpact, "falling back to interactive login"),
		)
		state = SessionState{}
	}

	if state.AccessToken != "" {
		ok, err := a.tryToken(ctx, state)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	} else {
		a.logger.Info("no stored access token", logging.String(logging.FieldEventType, "token_missing"))
	}
	return a.Interactive(ctx)
}

func (a *Authenticator) tryToken(ctx context.Context, state SessionState) (bool, error) {
	a.logger.Info("checking stored access token", logging.String(logging.FieldEventType, "token_check"))
	valid, err := a.session.CheckToken(ctx, state.AccessToken)
	if err == nil && valid {
		err = a.session.LoginWithToken(ctx, state.AccessToken, state.RandomKey)
		if err == nil {
			return true, nil
		}
	}
	if err != nil && !errors.Is(err, services.ErrAuthentication) {
		return false, err
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldImpact, "falling back to interactive login"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(a.logger, "stored access token rejected", "token_rejected", attrs...)
	return false, nil
}

// Interactive prompts for credentials, logs in and stores the issued token.
func (a *Authenticator) Interactive(ctx context.Context) error {
	if a.prompter == nil {
		return services.Wrap(services.ErrAuthentication, "login", "interactive", "no valid access token and no terminal to prompt on", nil)
	}
	account, err := a.prompter.Account()
	if err != nil {
		return err
	}
	password, err := a.prompter.Password()
	if err != nil {
		return err
	}
	key, err := a.newKey()
	if err != nil {
		return fmt.Errorf("generate random key: %w", err)
	}

	token, err := a.session.Login(ctx, account, password, key)
	if err != nil {
		return err
	}
	if token == "" {
		logging.WarnWithContext(a.logger, "lobby issued no access token", "token_missing",
			logging.String(logging.FieldImpact, "next run will prompt again"),
		)
		return nil
	}
	if err := a.store.Save(SessionState{RandomKey: key, AccessToken: token}); err != nil {
		logging.WarnWithContext(a.logger, "access token not saved", "token_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next run will prompt again"),
		)
		return nil
	}
	a.logger.Info("access token saved", logging.String(logging.FieldEventType, "token_saved"))
	return nil
}

func newRandomKey() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

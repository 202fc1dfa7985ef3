package chronoquest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chronoquest/chronoquest/internal/backend"
	"github.com/chronoquest/chronoquest/internal/localstore"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// SessionKey is the local storage key holding the signed-in token.
const SessionKey = "cq_session"

// JournalEntry is one drained operation, as recorded locally.
type JournalEntry = localstore.JournalEntry

// storedSession is what SignIn persists under SessionKey.
type storedSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
}

// Client is the process-scoped entry point. It owns the local store, the
// backend connection, the offline queue and the connectivity monitor, and
// holds no per-user state beyond the current Session.
type Client struct {
	config  Config
	store   *localstore.Store
	api     *backend.Client
	queue   *Queue
	network *Network
	debug   *DebugLogger
	logger  *slog.Logger

	mu      sync.Mutex
	session *Session
	closed  bool
}

// New creates a new ChronoQuest client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug, err := NewDebugLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = debug.Logger()
	}

	store, err := localstore.Open(cfg.LocalPath)
	if err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	c := &Client{
		config:  cfg,
		store:   store,
		queue:   NewQueue(store, store, logger),
		network: NewNetwork(!cfg.IsOffline()),
		debug:   debug,
		logger:  logger,
	}
	if cfg.BackendURL != "" {
		c.api = backend.New(cfg.BackendURL, cfg.AnonKey).WithTracer(debug)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.config }

// Network returns the connectivity monitor.
func (c *Client) Network() *Network { return c.network }

// Queue returns the offline operation queue.
func (c *Client) Queue() *Queue { return c.queue }

// Logger returns the library logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Journal lists recently drained operations, newest first.
func (c *Client) Journal(limit int) ([]JournalEntry, error) {
	entries, err := c.store.Journal(limit)
	if errors.Is(err, localstore.ErrClosed) {
		return nil, ErrStoreClosed
	}
	return entries, err
}

// Watch blocks until ctx is done, calling fn whenever the local store is
// written. This client's own writes fire it too.
func (c *Client) Watch(ctx context.Context, fn func()) error {
	return c.store.Watch(ctx, localstore.DefaultWatchDebounce, fn)
}

// StorePath returns the local database path.
func (c *Client) StorePath() string { return c.store.Path() }

func (c *Client) now() time.Time {
	return c.config.Now()
}

// SignIn authenticates with email and password, stores the token and
// opens a session for the user.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if c.api == nil {
		return nil, ErrOffline
	}
	auth, err := c.api.SignIn(ctx, email, password)
	if err != nil {
		return nil, remoteError("sign_in", err)
	}

	data, err := json.Marshal(storedSession{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		UserID:       auth.User.ID,
		Email:        auth.User.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("client: encode session: %w", err)
	}
	if err := c.store.Set(SessionKey, data); err != nil {
		return nil, fmt.Errorf("client: save session: %w", err)
	}
	return c.openWithToken(ctx, auth.AccessToken)
}

// Open starts a session from Config.AccessToken or the token stored by
// SignIn. Any previously open session is closed first.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	token := c.config.AccessToken
	if token == "" {
		raw, err := c.store.Get(SessionKey)
		if errors.Is(err, localstore.ErrKeyNotFound) {
			return nil, ErrNotSignedIn
		}
		if err != nil {
			return nil, fmt.Errorf("client: read session: %w", err)
		}
		var stored storedSession
		if err := json.Unmarshal(raw, &stored); err != nil || stored.AccessToken == "" {
			return nil, ErrNotSignedIn
		}
		token = stored.AccessToken
	}
	return c.openWithToken(ctx, token)
}

func (c *Client) openWithToken(ctx context.Context, token string) (*Session, error) {
	userID, err := userFromToken(token, c.now())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrStoreClosed
	}
	previous := c.session
	c.session = nil
	c.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	if c.api != nil {
		c.api.SetAccessToken(token)
	}
	s := newSession(c, userID)

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	s.start()
	return s, nil
}

// userFromToken reads the subject and expiry from a JWT. The signature is
// not checked here; the backend verifies it on every request.
func userFromToken(token string, now time.Time) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrNotSignedIn)
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && !exp.After(now) {
		return "", ErrTokenExpired
	}
	return sub, nil
}

// Session returns the open session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Logout closes the session and forgets the stored token. Pending
// operations stay queued; they carry their own user id.
func (c *Client) Logout() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
	if c.api != nil {
		c.api.SetAccessToken("")
	}
	if err := c.store.Delete(SessionKey); err != nil {
		return fmt.Errorf("client: delete session: %w", err)
	}
	return nil
}

// Close closes the session, then the local store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.Close()
	}
	err := c.store.Close()
	if derr := c.debug.Close(); err == nil {
		err = derr
	}
	return err
}

// remote returns the backend client, or ErrOffline when there is no backend
// or connectivity is down.
func (c *Client) remote() (*backend.Client, error) {
	if c.api == nil || !c.network.Online() {
		return nil, ErrOffline
	}
	return c.api, nil
}

// backendRemote replays queued operations against the backend.
type backendRemote struct {
	c *Client
}

type completionRow struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

type counterRow struct {
	UserID    string `json:"user_id"`
	TaskID    string `json:"task_id"`
	CountedOn string `json:"counted_on"`
	Count     int    `json:"count"`
}

func (r backendRemote) InsertCompletion(ctx context.Context, userID, taskID string) error {
	api, err := r.c.remote()
	if err != nil {
		return err
	}
	err = api.Insert(ctx, "task_completions", []completionRow{{UserID: userID, TaskID: taskID}}, nil)
	return remoteError("insert task_completions", err)
}

func (r backendRemote) UpsertCounter(ctx context.Context, userID, taskID, countedOn string, count int) error {
	api, err := r.c.remote()
	if err != nil {
		return err
	}
	row := counterRow{UserID: userID, TaskID: taskID, CountedOn: countedOn, Count: count}
	err = api.Upsert(ctx, "task_daily_counters", []counterRow{row}, "user_id,task_id,counted_on")
	return remoteError("upsert task_daily_counters", err)
}

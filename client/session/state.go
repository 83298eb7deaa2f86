package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tokengate/tokengate/client/apierror"
)

// ErrNoRefreshToken is returned by Refresh when no refresh token is stored;
// no network call is made in that case.
var ErrNoRefreshToken = errors.New("no refresh token available")

const (
	loginPath    = "/users/login"
	registerPath = "/users/register"
	refreshPath  = "/users/refresh"
	logoutPath   = "/users/logout"
)

// State owns the client session: it performs the login/refresh/logout
// operations against the issuer, persists the resulting triple, and publishes
// every session change to subscribers.
type State struct {
	baseURL  string
	client   *http.Client
	storage  Storage
	log      zerolog.Logger
	onLogout func()

	mu      sync.RWMutex
	current Session
	subs    map[int]chan Session
	nextSub int
}

type StateOption func(*State)

// WithHTTPClient sets the HTTP client used for the public auth endpoints.
// This client must not route through the refreshing transport.
func WithHTTPClient(client *http.Client) StateOption {
	return func(s *State) {
		s.client = client
	}
}

func WithLogger(log zerolog.Logger) StateOption {
	return func(s *State) {
		s.log = log
	}
}

// WithLogoutHook registers the UI redirect fired whenever the session is
// destroyed, whether by explicit logout or by a terminal refresh failure.
func WithLogoutHook(hook func()) StateOption {
	return func(s *State) {
		s.onLogout = hook
	}
}

func NewState(baseURL string, storage Storage, options ...StateOption) *State {
	s := &State{
		baseURL: baseURL,
		client:  http.DefaultClient,
		storage: storage,
		log:     zerolog.Nop(),
		subs:    make(map[int]chan Session),
	}

	for _, opt := range options {
		opt(s)
	}

	// Rehydrate from storage: the persisted triple survives restarts.
	s.current = Session{
		AccessToken:  storage.AccessToken(),
		RefreshToken: storage.RefreshToken(),
		User:         storage.User(),
	}

	return s
}

type tokenPairResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user"`
}

// Login authenticates with the issuer and installs the returned session. A
// failed login leaves any existing session untouched.
func (s *State) Login(ctx context.Context, email, password string) (Session, error) {
	var resp tokenPairResponse
	err := s.post(ctx, loginPath, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if err := s.install(sess); err != nil {
		return Session{}, err
	}

	s.log.Info().Str("user_id", resp.User.ID).Msg("logged in")
	return sess, nil
}

// Register creates a new account. It never touches the current session.
func (s *State) Register(ctx context.Context, name, email, password, role string) (*User, error) {
	var user User
	err := s.post(ctx, registerPath, map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges the stored refresh token for a new session. Fails
// immediately, without a network call, when no refresh token is stored. On
// failure the error propagates; the caller (primarily the request transport)
// decides whether the failure is terminal.
func (s *State) Refresh(ctx context.Context) (Session, error) {
	refreshToken := s.storage.RefreshToken()
	if refreshToken == "" {
		return Session{}, ErrNoRefreshToken
	}

	var resp tokenPairResponse
	err := s.post(ctx, refreshPath, map[string]string{
		"refreshToken": refreshToken,
	}, &resp)
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if err := s.install(sess); err != nil {
		return Session{}, err
	}

	s.log.Debug().Msg("session refreshed")
	return sess, nil
}

// Logout revokes the stored refresh token best-effort, then unconditionally
// clears the persisted session, publishes the empty session, and fires the
// logout redirect hook. Safe to call repeatedly.
func (s *State) Logout(ctx context.Context) {
	if refreshToken := s.storage.RefreshToken(); refreshToken != "" {
		// Fire-and-forget: storage is cleared regardless of the outcome.
		if err := s.post(ctx, logoutPath, map[string]string{"refreshToken": refreshToken}, nil); err != nil {
			s.log.Warn().Err(err).Msg("logout endpoint call failed")
		}
	}

	if err := s.storage.Clear(); err != nil {
		s.log.Error().Err(err).Msg("failed to clear session storage")
	}
	s.publish(Session{})

	if s.onLogout != nil {
		s.onLogout()
	}

	s.log.Info().Msg("logged out")
}

// Current returns a snapshot of the session. Callers that need the token
// after a refresh must call Current again rather than reuse an old snapshot.
func (s *State) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe returns a channel receiving every session change and a cancel
// function. Slow subscribers miss intermediate values rather than block
// publishers.
func (s *State) Subscribe() (<-chan Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Session, 8)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *State) IsAuthenticated() bool {
	return s.Current().Valid()
}

func (s *State) HasRole(role string) bool {
	return s.Current().HasRole(role)
}

func (s *State) IsAdmin() bool {
	return s.HasRole("admin")
}

// install persists the triple and then publishes the new session. Persisting
// first means a reader woken by the publish already sees the new storage.
func (s *State) install(sess Session) error {
	if err := s.storage.SetSession(sess.AccessToken, sess.RefreshToken, sess.User); err != nil {
		return err
	}
	s.publish(sess)
	return nil
}

func (s *State) publish(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = sess
	for _, ch := range s.subs {
		select {
		case ch <- sess:
		default:
		}
	}
}

func (s *State) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apierror.FromTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierror.FromResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

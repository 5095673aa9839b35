package application

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
)

// --- mock CredentialStore ---

type mockCredentialStore struct {
	mu      sync.Mutex
	creds   map[string]model.Credential
	corrupt map[string]bool
	loadErr error
	saveErr error
	saves   int
	deletes int
}

var _ driven.CredentialStore = (*mockCredentialStore)(nil)

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		creds:   make(map[string]model.Credential),
		corrupt: make(map[string]bool),
	}
}

func (m *mockCredentialStore) Load(_ context.Context, key model.BucketKey) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.corrupt[key.Name()] {
		return nil, fmt.Errorf("%w: invalid character", model.ErrCacheCorrupt)
	}
	c, ok := m.creds[key.Name()]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockCredentialStore) Save(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	delete(m.corrupt, cred.Key.Name())
	m.creds[cred.Key.Name()] = cred
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, key model.BucketKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.creds, key.Name())
	return nil
}

func (m *mockCredentialStore) seed(cred model.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Key.Name()] = cred
}

func (m *mockCredentialStore) get(key model.BucketKey) (model.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[key.Name()]
	return c, ok
}

// --- mock TokenFetcher ---

type mockTokenFetcher struct {
	mu           sync.Mutex
	tokenCalls   int
	agentCalls   int
	corpCalls    int
	secrets      []string
	ticketTokens []string
	delay        time.Duration

	tokenErr  error
	ticketErr error
	expiresIn int
}

var _ driven.TokenFetcher = (*mockTokenFetcher)(nil)

func (m *mockTokenFetcher) FetchAccessToken(ctx context.Context, corpID, secret string) (model.FetchResult, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.FetchResult{}, err
	}
	if m.tokenErr != nil {
		return model.FetchResult{}, m.tokenErr
	}
	m.tokenCalls++
	m.secrets = append(m.secrets, secret)
	return model.FetchResult{
		Value:     fmt.Sprintf("token-%s-%d", secret, m.tokenCalls),
		ExpiresIn: m.expiresIn,
		Fields:    map[string]any{"errcode": float64(0), "errmsg": "ok"},
	}, nil
}

func (m *mockTokenFetcher) FetchAgentTicket(_ context.Context, accessToken string) (model.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticketErr != nil {
		return model.FetchResult{}, m.ticketErr
	}
	m.agentCalls++
	m.ticketTokens = append(m.ticketTokens, accessToken)
	return model.FetchResult{Value: fmt.Sprintf("agent-ticket-%d", m.agentCalls), ExpiresIn: 7200}, nil
}

func (m *mockTokenFetcher) FetchCorpTicket(_ context.Context, accessToken string) (model.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticketErr != nil {
		return model.FetchResult{}, m.ticketErr
	}
	m.corpCalls++
	m.ticketTokens = append(m.ticketTokens, accessToken)
	return model.FetchResult{Value: fmt.Sprintf("corp-ticket-%d", m.corpCalls), ExpiresIn: 7200}, nil
}

func (m *mockTokenFetcher) calls() (tokens, agent, corp int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenCalls, m.agentCalls, m.corpCalls
}

// --- mock APIClient ---

type apiCall struct {
	method string
	path   string
	token  string
	query  url.Values
}

type mockAPIClient struct {
	mu    sync.Mutex
	calls []apiCall
	// errs is consumed one per call; nil entries mean success.
	errs   []error
	ipList []string
}

var _ driven.APIClient = (*mockAPIClient)(nil)

func (m *mockAPIClient) Do(_ context.Context, method, path, accessToken string, query url.Values, _, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, apiCall{method: method, path: path, token: accessToken, query: query})

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}

	if dst, ok := out.(*struct {
		IPList []string `json:"ip_list"`
	}); ok {
		dst.IPList = m.ipList
	}
	return nil
}

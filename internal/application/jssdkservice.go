package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/wxcrypto"
)

// JSSDKService signs page URLs for the front-end JS-SDK.
type JSSDKService struct {
	creds     CredentialProvider
	corpID    string
	agentID   string
	corpScope model.SecretScope

	now   func() time.Time
	nonce func() string
}

// NewJSSDKService creates a JSSDKService. Agent configs are signed with the
// agent scope's ticket; corp configs with the ticket of corpScope.
func NewJSSDKService(creds CredentialProvider, corpID, agentID string, corpScope model.SecretScope) *JSSDKService {
	return &JSSDKService{
		creds:     creds,
		corpID:    corpID,
		agentID:   agentID,
		corpScope: corpScope,
		now:       time.Now,
		nonce:     randomNonce,
	}
}

// AgentConfig returns the wx.agentConfig parameters for pageURL.
func (s *JSSDKService) AgentConfig(ctx context.Context, pageURL string) (model.JSSDKConfig, error) {
	cfg, err := s.sign(ctx, model.ScopeAgent, model.KindAgentTicket, pageURL)
	if err != nil {
		return model.JSSDKConfig{}, err
	}
	cfg.AgentID = s.agentID
	return cfg, nil
}

// CorpConfig returns the wx.config parameters for pageURL.
func (s *JSSDKService) CorpConfig(ctx context.Context, pageURL string) (model.JSSDKConfig, error) {
	return s.sign(ctx, s.corpScope, model.KindCorpTicket, pageURL)
}

func (s *JSSDKService) sign(ctx context.Context, scope model.SecretScope, kind model.CredentialKind, pageURL string) (model.JSSDKConfig, error) {
	ticket, err := s.creds.Get(ctx, scope, kind)
	if err != nil {
		return model.JSSDKConfig{}, fmt.Errorf("jssdk %s: %w", kind, err)
	}

	ts := s.now().Unix()
	nonce := s.nonce()
	return model.JSSDKConfig{
		AppID:     s.corpID,
		Timestamp: ts,
		NonceStr:  nonce,
		Signature: wxcrypto.SignJSAPI(ticket, nonce, ts, pageURL),
	}, nil
}

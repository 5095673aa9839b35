package application

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/metrics"
	"github.com/ericfisherdev/wecomkit/internal/wxcrypto"
	"github.com/ericfisherdev/wecomkit/internal/xmlfield"
)

const replyTemplate = `<xml>
   <Encrypt><![CDATA[%s]]></Encrypt>
   <MsgSignature><![CDATA[%s]]></MsgSignature>
   <TimeStamp>%s</TimeStamp>
   <Nonce><![CDATA[%s]]></Nonce>
</xml>`

// CallbackService authenticates and decrypts inbound callbacks and builds
// encrypted replies. It holds no mutable state and is safe for concurrent use.
type CallbackService struct {
	token      string
	receiverID string
	cipher     *wxcrypto.Cipher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	now   func() time.Time
	nonce func() string
}

// NewCallbackService creates a CallbackService for one callback URL.
// receiverID is the corp id (or suite id) appended to every encrypted reply.
func NewCallbackService(token, encodingAESKey, receiverID string, logger *slog.Logger, m *metrics.Metrics) (*CallbackService, error) {
	c, err := wxcrypto.NewCipher(encodingAESKey)
	if err != nil {
		return nil, fmt.Errorf("callback cipher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackService{
		token:      token,
		receiverID: receiverID,
		cipher:     c,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		nonce:      randomNonce,
	}, nil
}

// Open verifies the envelope signature and returns the decrypted message.
// Nothing is decrypted when the signature does not match.
func (s *CallbackService) Open(env model.CipherEnvelope) (string, error) {
	if !wxcrypto.Verify(env.MsgSignature, s.token, env.Timestamp, env.Nonce, env.Encrypt) {
		s.metrics.IncCallback("signature_mismatch")
		s.logger.Warn("callback signature mismatch", "timestamp", env.Timestamp, "nonce", env.Nonce)
		return "", fmt.Errorf("open callback: %w", model.ErrSignatureMismatch)
	}

	msg, _, err := s.cipher.Decrypt(env.Encrypt)
	if err != nil {
		s.metrics.IncCallback("decryption_failure")
		s.logger.Warn("callback decryption failed", "error", err)
		return "", fmt.Errorf("open callback: %w", err)
	}
	return string(msg), nil
}

// VerifyURL answers the platform's URL verification handshake by returning
// the decrypted echostr.
func (s *CallbackService) VerifyURL(q model.CallbackQuery, echostr string) (string, error) {
	plain, err := s.Open(q.Envelope(echostr))
	if err != nil {
		return "", err
	}
	s.metrics.IncCallback("ok")
	return plain, nil
}

// Receive authenticates, decrypts and parses a callback request body.
func (s *CallbackService) Receive(q model.CallbackQuery, body string) (*model.Notification, error) {
	encrypt := xmlfield.Value(body, "Encrypt")
	if encrypt == "" {
		s.metrics.IncCallback("malformed")
		return nil, fmt.Errorf("%w: callback body has no <Encrypt> element", model.ErrMalformedInput)
	}

	plain, err := s.Open(q.Envelope(encrypt))
	if err != nil {
		return nil, err
	}

	n, err := ParseNotification(plain)
	if err != nil {
		s.metrics.IncCallback("malformed")
		return nil, err
	}
	s.metrics.IncCallback("ok")

	s.logger.Debug("callback received",
		"msg_type", n.MsgType,
		"event", n.Event,
		"change_type", n.ChangeType,
	)
	return n, nil
}

// BuildReply encrypts reply, signs it and renders the reply envelope.
// An empty timestamp defaults to the current Unix time in seconds and an
// empty nonce to a random token.
func (s *CallbackService) BuildReply(reply, timestamp, nonce string) (string, error) {
	if timestamp == "" {
		timestamp = strconv.FormatInt(s.now().Unix(), 10)
	}
	if nonce == "" {
		nonce = s.nonce()
	}

	encrypt, err := s.cipher.Encrypt([]byte(reply), s.receiverID)
	if err != nil {
		return "", fmt.Errorf("encrypt reply: %w", err)
	}
	signature := wxcrypto.Sign(s.token, timestamp, nonce, encrypt)

	return fmt.Sprintf(replyTemplate, encrypt, signature, timestamp, nonce), nil
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

package wxcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

const (
	// padBlock is the platform's padding boundary. It is twice the AES block
	// size and must stay 32 for the platform to decode replies.
	padBlock = 32

	randomLen = 16
	lengthLen = 4
	minFrame  = randomLen + lengthLen
)

// Cipher encrypts and decrypts callback payloads under one EncodingAESKey.
// A Cipher holds only immutable key material and is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher derives the AES-256 key and IV from an EncodingAESKey. The key is
// the base64 decoding of the 43-character EncodingAESKey plus one "=", and
// the IV is its first 16 bytes.
func NewCipher(encodingAESKey string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, fmt.Errorf("%w: decode EncodingAESKey: %w", model.ErrDecryption, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: EncodingAESKey yields %d-byte key, want 32", model.ErrDecryption, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %w", model.ErrDecryption, err)
	}

	return &Cipher{block: block, iv: key[:aes.BlockSize]}, nil
}

// Decrypt decodes a base64 ciphertext and returns the framed message and the
// trailing receiver id. The receiver id is not checked against anything.
func (c *Cipher) Decrypt(ciphertextB64 string) (msg, receiverID []byte, err error) {
	data, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: base64: %w", model.ErrDecryption, err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d",
			model.ErrDecryption, len(data), aes.BlockSize)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(plain, data)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > padBlock || pad > len(plain) {
		return nil, nil, fmt.Errorf("%w: invalid pad length %d", model.ErrDecryption, pad)
	}
	plain = plain[:len(plain)-pad]

	if len(plain) < minFrame {
		return nil, nil, fmt.Errorf("%w: frame too short (%d bytes)", model.ErrDecryption, len(plain))
	}
	msgLen := binary.BigEndian.Uint32(plain[randomLen:minFrame])
	if uint64(msgLen) > uint64(len(plain)-minFrame) {
		return nil, nil, fmt.Errorf("%w: message length %d overruns frame", model.ErrDecryption, msgLen)
	}

	end := minFrame + int(msgLen)
	return plain[minFrame:end], plain[end:], nil
}

// Encrypt frames msg with a random prefix and receiverID, pads it to a
// 32-byte boundary and returns the base64 ciphertext.
func (c *Cipher) Encrypt(msg []byte, receiverID string) (string, error) {
	prefix := make([]byte, randomLen)
	if _, err := io.ReadFull(rand.Reader, prefix); err != nil {
		return "", fmt.Errorf("read random prefix: %w", err)
	}
	return c.encrypt(prefix, msg, receiverID), nil
}

func (c *Cipher) encrypt(prefix, msg []byte, receiverID string) string {
	frameLen := minFrame + len(msg) + len(receiverID)
	pad := padBlock - frameLen%padBlock

	frame := make([]byte, 0, frameLen+pad)
	frame = append(frame, prefix...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(msg))) //nolint:gosec // bounded by memory
	frame = append(frame, msg...)
	frame = append(frame, receiverID...)
	for range pad {
		frame = append(frame, byte(pad))
	}

	out := make([]byte, len(frame))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, frame)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt is a one-shot helper that decrypts ciphertextB64 under
// encodingAESKey and returns the message.
func Decrypt(ciphertextB64, encodingAESKey string) (string, error) {
	c, err := NewCipher(encodingAESKey)
	if err != nil {
		return "", err
	}
	msg, _, err := c.Decrypt(ciphertextB64)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// Encrypt is a one-shot helper that encrypts message for receiverID under
// encodingAESKey.
func Encrypt(message, encodingAESKey, receiverID string) (string, error) {
	c, err := NewCipher(encodingAESKey)
	if err != nil {
		return "", err
	}
	return c.Encrypt([]byte(message), receiverID)
}

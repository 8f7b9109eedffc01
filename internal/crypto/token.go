package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vdavid/vmail-lite/internal/models"
)

// ErrInvalidToken is returned for any token that cannot be turned back into
// credentials.
var ErrInvalidToken = errors.New("invalid token")

// TokenCodec turns credentials into an opaque bearer token and back.
type TokenCodec interface {
	Encode(creds models.Credentials) (string, error)
	Decode(token string) (models.Credentials, error)
}

// SealedTokenCodec encrypts the JSON form of the credentials and encodes the
// result as unpadded URL-safe base64, so the token can also travel in a
// query string.
type SealedTokenCodec struct {
	encryptor *Encryptor
}

func NewTokenCodec(encryptor *Encryptor) *SealedTokenCodec {
	return &SealedTokenCodec{encryptor: encryptor}
}

func (c *SealedTokenCodec) Encode(creds models.Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	sealed, err := c.encryptor.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to seal credentials: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *SealedTokenCodec) Decode(token string) (models.Credentials, error) {
	var creds models.Credentials

	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	plaintext, err := c.encryptor.Decrypt(sealed)
	if err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if creds.Address == "" || creds.Host == "" {
		return creds, fmt.Errorf("%w: incomplete credentials", ErrInvalidToken)
	}

	return creds, nil
}

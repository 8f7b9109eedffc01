package testutil

import (
	"encoding/base64"
	"testing"

	"github.com/vdavid/vmail-lite/internal/crypto"
)

// TestKeyBase64 is a deterministic 32 byte key (0x00..0x1f) for tests.
var TestKeyBase64 = func() string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}()

// GetTestTokenCodec returns a token codec sealed with TestKeyBase64.
func GetTestTokenCodec(t *testing.T) *crypto.SealedTokenCodec {
	t.Helper()

	encryptor, err := crypto.NewEncryptor(TestKeyBase64)
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}
	return crypto.NewTokenCodec(encryptor)
}

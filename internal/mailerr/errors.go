// Package mailerr holds the error taxonomy shared by the mail session,
// codec, delivery and HTTP layers.
package mailerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can pick a status and a
// user-facing message without looking at protocol details.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindConnectivity
	KindLock
	KindOperation
	KindNotFound
	KindDecode
	KindDeliverySubmission
	KindInvalidInput
	KindInvalidToken
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindConnectivity:
		return "connectivity"
	case KindLock:
		return "lock"
	case KindOperation:
		return "operation"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	case KindDeliverySubmission:
		return "delivery_submission"
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidToken:
		return "invalid_token"
	default:
		return "internal"
	}
}

// Error is a classified failure. Op names the step that failed, Err is the
// underlying cause. Only delivery failures show a summary of it to API
// clients.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and the operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code returned by the API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthentication, KindInvalidToken:
		return http.StatusUnauthorized
	case KindConnectivity, KindDeliverySubmission:
		return http.StatusBadGateway
	case KindLock:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindDecode:
		return http.StatusUnprocessableEntity
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message is the human-readable text sent to API clients for a kind.
func Message(kind Kind) string {
	switch kind {
	case KindAuthentication:
		return "Giriş başarısız: Kullanıcı adı veya şifre hatalı. Lütfen bilgilerinizi kontrol edin."
	case KindConnectivity:
		return "Sunucuya bağlanılamadı. Lütfen sunucu adresini (Host) ve Port numarasını kontrol edin."
	case KindLock:
		return "Klasör şu anda meşgul, lütfen tekrar deneyin."
	case KindOperation:
		return "Sunucu işlemi reddetti."
	case KindNotFound:
		return "Bulunamadı"
	case KindDecode:
		return "E-posta içeriği çözümlenemedi."
	case KindDeliverySubmission:
		return "E-posta gönderilemedi."
	case KindInvalidInput:
		return "Geçersiz istek"
	case KindInvalidToken:
		return "Yetkisiz erişim"
	default:
		return "Sunucu hatası"
	}
}

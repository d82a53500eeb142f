package identity

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードが拒否されたことを示す。
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrInvalidSession はアクセストークン、リフレッシュトークン、認可コードのいずれかが
	// バックエンドにより明示的に拒否されたことを示す。
	// 通信エラーはこのエラーにならない。
	ErrInvalidSession = errors.New("identity: invalid session")
)

// BackendError は認証バックエンドが2xx以外を返した場合のエラー。
// 拒否として分類された場合はErrInvalidCredentialsまたはErrInvalidSessionをラップする。
type BackendError struct {
	Op      string
	Status  int
	Code    string
	Message string
	kind    error
}

// Error はerrorインターフェースを実装する。
func (e *BackendError) Error() string {
	return fmt.Sprintf("identity %s: status %d: %s", e.Op, e.Status, e.Message)
}

// Unwrap は分類済みのセンチネルエラーを返す。
func (e *BackendError) Unwrap() error {
	return e.kind
}

// rejectionCodes はバックエンドが資格情報やトークンの拒否を示すエラーコード。
var rejectionCodes = map[string]struct{}{
	"invalid_grant":              {},
	"invalid_credentials":        {},
	"bad_jwt":                    {},
	"session_not_found":          {},
	"refresh_token_not_found":    {},
	"refresh_token_already_used": {},
	"flow_state_not_found":       {},
	"flow_state_expired":         {},
	"bad_code_verifier":          {},
}

// newBackendError はレスポンスボディからメッセージとコードを抽出してBackendErrorを生成する。
// バックエンドのバージョンによりフィールド名が異なるため、候補を順に探す。
func newBackendError(op string, status int, body []byte) *BackendError {
	e := &BackendError{
		Op:      op,
		Status:  status,
		Code:    firstString(body, "error_code", "error"),
		Message: firstString(body, "msg", "error_description", "message", "error"),
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("unexpected status %d", status)
	}

	if isRejection(status, e.Code) {
		if op == opSignIn {
			e.kind = ErrInvalidCredentials
		} else if op != opSignUp {
			e.kind = ErrInvalidSession
		}
	}
	return e
}

func isRejection(status int, code string) bool {
	switch status {
	case 401, 403:
		return true
	case 400, 404:
		_, ok := rejectionCodes[code]
		return ok
	}
	return false
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		v := gjson.GetBytes(body, p)
		if v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

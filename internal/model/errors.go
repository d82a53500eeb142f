// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// フォームやエラーページに表示するメッセージと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, ticket, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTicketNotFound     = "TICKET_NOT_FOUND"
	ErrCodeCreateFailed       = "TICKET_CREATE_FAILED"
	ErrCodeUpdateFailed       = "TICKET_UPDATE_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSignUpFailed       = "SIGN_UP_FAILED"
	ErrCodeIdentityDown       = "IDENTITY_UNAVAILABLE"
)

// NewUnauthenticatedError は未ログイン状態で変更操作を行った場合のエラーを生成する。
// actionには "create" や "update" などの操作名を指定する。
func NewUnauthenticatedError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  fmt.Sprintf("You must be logged in to %s a ticket.", action),
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  reason,
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
	}
}

// NewTicketNotFoundError はチケット未検出エラーを生成する。
// 存在しない場合と所有者でない場合を区別しない。
func NewTicketNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTicketNotFound,
		Message:  "The ticket you are looking for does not exist.",
		Category: "ticket",
		Action:   "Go back to the ticket list.",
	}
}

// NewCreateFailedError はバックエンドがチケット作成を拒否した場合のエラーを生成する。
func NewCreateFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCreateFailed,
		Message:  "Could not create a ticket. Error: " + reason,
		Category: "ticket",
		Action:   "Try submitting the form again.",
	}
}

// NewUpdateFailedError はバックエンドがチケット更新を拒否した場合のエラーを生成する。
func NewUpdateFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpdateFailed,
		Message:  "Could not update ticket: " + reason,
		Category: "ticket",
		Action:   "Try submitting the form again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  reason,
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewSignUpFailedError はサインアップ失敗エラーを生成する。
func NewSignUpFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSignUpFailed,
		Message:  reason,
		Category: "auth",
		Action:   "Use a different email address or try again later.",
	}
}

// NewIdentityUnavailableError は認証バックエンドに到達できない場合のエラーを生成する。
func NewIdentityUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeIdentityDown,
		Message:  "The authentication service is unavailable. Please try again later.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

package repository

import (
	"errors"

	"github.com/lib/pq"
)

// RejectionReason はデータバックエンドが操作を拒否した理由を、利用者に表示できる形で返す。
// PostgreSQLのエラーであればそのメッセージを、それ以外は汎用の文言を返す。
func RejectionReason(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Message != "" {
		return pqErr.Message
	}
	return "the data backend could not process the request"
}

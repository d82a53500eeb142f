package security

import (
	"net/url"
	"strings"
)

// SafeRedirectPath は認証コールバックのnextパラメータを検証し、
// 同一オリジン内のパスのみを返す。検証に失敗した場合は "/" を返す。
//
// 拒否する例:
//   - "https://evil.example" のような絶対URL
//   - "//evil.example" のようなスキーム相対URL
//   - "/\evil.example" のようにブラウザがホストとして解釈し得るもの
func SafeRedirectPath(next string) string {
	const fallback = "/"

	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if strings.ContainsAny(next, "\r\n\t") {
		return fallback
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}

package auth

import (
	"net/http"
	"strings"

	"github.com/hitoshi/helpdesk/internal/model"
)

// Cookie名
const (
	AccessTokenCookie  = "helpdesk_access_token"
	RefreshTokenCookie = "helpdesk_refresh_token"
	CodeVerifierCookie = "helpdesk_code_verifier"
)

// codeVerifierMaxAge はPKCE verifier Cookieの有効期間（秒）。
const codeVerifierMaxAge = 600

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// CookieStore はセッショントークンの組をCookieとして読み書きする。
type CookieStore struct {
	config CookieConfig
}

// NewCookieStore はCookieStoreを生成する。
func NewCookieStore(config CookieConfig) *CookieStore {
	return &CookieStore{config: config}
}

// Read はリクエストのCookieからセッションを読み出す。
func (c *CookieStore) Read(r *http.Request) model.Session {
	var s model.Session
	if ck, err := r.Cookie(AccessTokenCookie); err == nil {
		s.AccessToken = ck.Value
	}
	if ck, err := r.Cookie(RefreshTokenCookie); err == nil {
		s.RefreshToken = ck.Value
	}
	return s
}

// Write はセッションをレスポンスのSet-Cookieに書き込む。
func (c *CookieStore) Write(w http.ResponseWriter, s model.Session) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, s.AccessToken, c.config.MaxAge))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, s.RefreshToken, c.config.MaxAge))
}

// Clear はセッションCookieを削除するSet-Cookieを書き込む。
func (c *CookieStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", -1))
}

// ApplyToRequest は転送中のリクエストのCookieヘッダーをセッションで書き換える。
// 後続のハンドラーが同じリクエスト内で新しいトークンを読めるようにする。
// sがゼロ値の場合はセッションCookieを取り除く。その他のCookieは保持する。
func (c *CookieStore) ApplyToRequest(r *http.Request, s model.Session) {
	var parts []string
	for _, ck := range r.Cookies() {
		if ck.Name == AccessTokenCookie || ck.Name == RefreshTokenCookie {
			continue
		}
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	if s.AccessToken != "" {
		parts = append(parts, AccessTokenCookie+"="+s.AccessToken)
	}
	if s.RefreshToken != "" {
		parts = append(parts, RefreshTokenCookie+"="+s.RefreshToken)
	}

	if len(parts) == 0 {
		r.Header.Del("Cookie")
		return
	}
	r.Header.Set("Cookie", strings.Join(parts, "; "))
}

// WriteCodeVerifier はサインアップ時のPKCE verifierを短命のCookieに保存する。
func (c *CookieStore) WriteCodeVerifier(w http.ResponseWriter, verifier string) {
	http.SetCookie(w, c.cookie(CodeVerifierCookie, verifier, codeVerifierMaxAge))
}

// ReadCodeVerifier はPKCE verifierを読み出す。存在しない場合は空文字列を返す。
func (c *CookieStore) ReadCodeVerifier(r *http.Request) string {
	ck, err := r.Cookie(CodeVerifierCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

// ClearCodeVerifier はPKCE verifier Cookieを削除する。
func (c *CookieStore) ClearCodeVerifier(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(CodeVerifierCookie, "", -1))
}

func (c *CookieStore) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

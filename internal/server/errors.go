package server

import (
	"bytes"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
)

var (
	// ErrForbidden はルートディレクトリの外を指す要求を表す
	ErrForbidden = errors.New("ルートディレクトリ外へのアクセス")

	// ErrNotFound は要求されたパスに何も存在しないことを表す
	ErrNotFound = errors.New("ファイルが見つかりません")
)

// statusFor はエラーをHTTPステータスコードに変換する
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ENOTDIR):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor はエラーページに表示するメッセージを返す
func messageFor(code int) string {
	if code == http.StatusNotFound {
		return "File not found"
	}
	return http.StatusText(code)
}

// respondError はエラーをHTTPレスポンスに変換して書き込む
// サーバーエラーのみリクエストIDとともにログに残す
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", c.GetString(requestIDKey), c.Request.Method, c.Request.URL.Path, err)
	}
	renderError(c, code)
}

// renderError はエラーページを書き込む
func renderError(c *gin.Context, code int) {
	var buf bytes.Buffer
	data := struct {
		Code    int
		Message string
	}{code, messageFor(code)}
	if err := errorTmpl.Execute(&buf, data); err != nil {
		log.Printf("エラーページの生成に失敗: %v", err)
		c.AbortWithStatus(code)
		return
	}

	writeBody(c, code, "text/html; charset=utf-8", buf.Bytes())
	c.Abort()
}

// writeBody はHEADリクエストでは本文を省いてレスポンスを書き込む
func writeBody(c *gin.Context, code int, contentType string, body []byte) {
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", contentType)
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.Status(code)
		c.Writer.WriteHeaderNow()
		return
	}
	c.Data(code, contentType, body)
}

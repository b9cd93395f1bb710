package server

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey はgin.Contextに保存するリクエストIDのキー
const requestIDKey = "request_id"

// noCache はすべてのレスポンスにキャッシュ無効化ヘッダーを付ける
// 後続のハンドラより先に設定するので、エラーやリダイレクトにも付く
func noCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
}

// requestID はログの突き合わせ用にリクエストごとのIDを割り当てる
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestIDKey, uuid.NewString())
		c.Next()
	}
}

// recovery はハンドラ内のpanicを500レスポンスに変換する
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		log.Printf("[%s] %s %s: panic: %v", c.GetString(requestIDKey), c.Request.Method, c.Request.URL.Path, rec)
		renderError(c, http.StatusInternalServerError)
	})
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/netutil"

	"nocachesrv/internal/config"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	httpServer *http.Server
	engine     *gin.Engine
	listener   net.Listener

	// 起動メッセージの出力先
	stdout io.Writer
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config) (*Server, error) {
	root, err := cfg.RootDir()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		config: cfg,
		engine: engine,
		httpServer: &http.Server{
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		stdout: os.Stdout,
	}
	s.setupRoutes(NewStaticHandler(root, cfg.Static.IndexFiles, cfg.Static.ContentTypes))

	return s, nil
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes(h *StaticHandler) {
	// ヘッダー付与を最初に置き、405やpanic時のレスポンスにも付くようにする
	s.engine.Use(noCache(), requestID(), recovery())

	s.engine.GET("/*filepath", h.Serve)
	s.engine.HEAD("/*filepath", h.Serve)
	s.engine.NoMethod(h.MethodNotAllowed)
}

// Handler はリクエストを処理するhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen は設定されたアドレスでリッスンを開始する
// ポートが使用中などで失敗した場合はエラーを返す
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("ポート %d のリッスンに失敗: %w", s.config.Server.Port, err)
	}

	if n := s.config.Server.MaxConns; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	s.listener = ln
	return nil
}

// Port は実際にリッスンしているポート番号を返す
func (s *Server) Port() int {
	if s.listener == nil {
		return s.config.Server.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Server.Port
}

// Start はサーバーを起動する
// コンテキストのキャンセルかシグナルを受けるまで戻らない
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	fmt.Fprintf(s.stdout, "serving at port %d\n", s.Port())

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 新しい接続の受け付けを止め、処理中のリクエストの完了を待つ
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.listener != nil {
		// Serveが始まる前に止めた場合でもソケットを残さない
		_ = s.listener.Close()
	}
	if err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

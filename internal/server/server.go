// Package server はタスクAPIのHTTPサーバーを構築する。
//
// /health だけをGinのルートとして登録し、それ以外のリクエストは
// NoRouteに登録したディスパッチャがルートテーブルに従って振り分ける。
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskapi/internal/config"
	"github.com/nao1215/taskapi/internal/login"
	"github.com/nao1215/taskapi/internal/task"
	"github.com/nao1215/taskapi/pkg/dispatch"
	"github.com/nao1215/taskapi/pkg/middleware"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server はタスクAPIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はリッスンアドレス。
	addr string
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は設定からサーバーを生成する。
// データベースを開いてマイグレーションを適用し、ルートテーブルを構築する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := task.OpenDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newServer は開いたデータベースを使ってサーバーを組み立てる。
func newServer(cfg *config.Config, db *sql.DB) (*Server, error) {
	if cfg.JWTSecret == "" {
		log.Printf("[server] JWT_SECRET が未設定です。認証が必要なリクエストは500を返します")
	}

	table, err := Routes(cfg, db)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router: router,
		addr:   cfg.Addr(),
		db:     db,
	}
	s.setupRoutes(dispatch.NewDispatcher(table, dispatch.NewGate(cfg.JWTSecret)))
	return s, nil
}

// Routes はアプリケーションのルートテーブルを構築する。
func Routes(cfg *config.Config, db *sql.DB) (*dispatch.Table, error) {
	table := dispatch.NewTable()
	if err := task.NewHandler(task.NewStore(db)).Register(table); err != nil {
		return nil, err
	}
	if err := login.NewHandler(cfg.JWTSecret, cfg.Users, cfg.TokenTTL).Register(table); err != nil {
		return nil, err
	}
	return table, nil
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes(d *dispatch.Dispatcher) {
	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "taskapi"})
	})

	// それ以外はルートテーブルで振り分ける
	s.router.NoRoute(d.Handle)
}

// Handler はサーバーのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルにシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[server] タスクAPIを起動します: %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[server] シャットダウンします")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("グレースフルシャットダウンに失敗: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

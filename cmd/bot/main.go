package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bunnybrand/My-botinok/cmd/bot/config"
	"github.com/bunnybrand/My-botinok/internal/cryptopay"
	"github.com/bunnybrand/My-botinok/internal/observability"
	"github.com/bunnybrand/My-botinok/internal/realtime"
	"github.com/bunnybrand/My-botinok/internal/shop"
	"github.com/bunnybrand/My-botinok/internal/telegram"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadDotenv()

	if err := run(ctx); err != nil {
		log.Fatalf("bot error: %v", err)
	}
}

func run(ctx context.Context) error {
	botCfg, err := config.LoadBot()
	if err != nil {
		return err
	}
	payCfg, err := config.LoadCryptoPay()
	if err != nil {
		return err
	}
	shopCfg, err := config.LoadShop()
	if err != nil {
		return err
	}

	store, cat, cleanup := buildStorage(ctx, config.LoadStorage(), shopCfg, log.Printf)
	defer cleanup()

	metrics := observability.NewMetrics()
	hub := realtime.NewHub(log.Printf)

	gateway := cryptopay.New(payCfg.BaseURL, payCfg.Token, payCfg.Timeout, log.Printf)
	flow := shop.NewFlow(cat, gateway, store, shop.FlowConfig{
		Assets:   shopCfg.Assets,
		Notifier: hub,
		Logf:     log.Printf,
	})
	reconciler := shop.NewReconciler(gateway, store, hub, log.Printf)

	api, err := tgbotapi.NewBotAPI(botCfg.Token)
	if err != nil {
		return fmt.Errorf("telegram auth: %w", err)
	}
	log.Printf("authorized as @%s", api.Self.UserName)

	limiter := telegram.NewSendLimiter(botCfg.SendInterval, botCfg.SendBurst, metrics.AddSendWait)
	bot := telegram.New(api, telegram.Config{
		Flow:       flow,
		Reconciler: reconciler,
		Metrics:    metrics,
		Limiter:    limiter,
		Logf:       log.Printf,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Println("polling for updates...")
		return bot.Run(gctx)
	})

	if obsCfg := config.LoadObservability(); obsCfg.Addr != "" {
		srv := observabilityServer(obsCfg.Addr, metrics, hub)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Printf("observability server on %s", obsCfg.Addr)
	}

	err = g.Wait()
	metrics.MarkShutdown()
	return err
}

func observabilityServer(addr string, metrics *observability.Metrics, hub *realtime.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/ws", hub.Handler())

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

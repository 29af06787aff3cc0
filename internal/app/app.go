package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"ticketpay/internal/clock"
	"ticketpay/internal/config"
	"ticketpay/internal/fee"
	"ticketpay/internal/gateway"
	"ticketpay/internal/httpapi"
	"ticketpay/internal/payment"
	"ticketpay/internal/storage"
	"ticketpay/internal/websocket"
	"ticketpay/pkg/contracts"
	"ticketpay/pkg/messaging"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	publisher messaging.Publisher
	consumer  *messaging.Consumer
	outbox    *messaging.OutboxDispatcher
	hub       *websocket.Hub
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	// Status pushes ride on RabbitMQ; with SQS the websocket only serves the initial snapshot.
	// Each replica fans out to its own clients, so its queue dies with its connection.
	var consumer *messaging.Consumer
	if cfg.Broker == config.BrokerRabbitMQ {
		consumer, err = messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.PaymentsExchange, cfg.StatusQueue, messaging.ReplicaQueue, logger,
			contracts.TypeOrderStatusChanged)
		if err != nil {
			store.Close()
			publisher.Close()
			return nil, err
		}
	}

	pool := store.Pool()
	orders := storage.NewOrderRepository(pool)
	records := storage.NewPaymentRecordRepository(pool)
	outboxStore := storage.NewOutbox(pool)
	clk := clock.NewSystem()

	gateways := gateway.NewFactory(gateway.Credentials{KeyID: cfg.RazorpayKeyID, KeySecret: cfg.RazorpayKeySecret})
	verifier := gateway.NewVerifier(cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	reconciler := payment.NewReconciler(payment.ReconcilerDeps{
		Tx:        store,
		Orders:    orders,
		Records:   records,
		Inventory: storage.NewInventoryRepository(pool),
		Fees:      fee.NewCalculator(fee.Defaults{Percentage: cfg.ApplicationFeePercent, Fixed: cfg.ApplicationFeeFixed}),
		Ledger:    storage.NewFeeRepository(pool),
		Emitter:   outboxStore,
		Gateway:   gateways,
		Clock:     clk,
		Timeout:   cfg.GatewayTimeout,
		Logger:    logger,
	})

	hub := websocket.NewHub(logger)

	api := httpapi.NewServer(httpapi.Deps{
		Creator:   payment.NewOrderCreator(orders, records, gateways, clk, cfg.GatewayTimeout, logger),
		Verifier:  payment.NewClientVerifier(verifier, orders, records, reconciler, logger),
		Webhooks:  payment.NewWebhookProcessor(verifier, records, orders, reconciler, storage.NewWebhookInbox(pool), logger),
		Refunds:   payment.NewRefunder(orders, records, gateways, outboxStore, clk, cfg.GatewayTimeout, logger),
		Health:    store,
		Websocket: websocket.NewHandler(hub, orders, logger).ServeWS,
		Authorize: httpapi.RequireBearerToken(cfg.AdminToken),
	}, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(pool, publisher, storage.OutboxTable, cfg.OutboxInterval, cfg.OutboxBatch, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		publisher: publisher,
		consumer:  consumer,
		outbox:    outbox,
		hub:       hub,
		httpSrv:   httpSrv,
	}, nil
}

func newPublisher(ctx context.Context, cfg config.Config) (messaging.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerRabbitMQ:
		return messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.PaymentsExchange)
	case config.BrokerSQS:
		if cfg.SQSQueueURL == "" {
			return nil, errors.New("PAYMENTS_SQS_QUEUE_URL is required when BROKER=sqs")
		}
		client, err := messaging.LoadSQSClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return messaging.NewSQSPublisher(client, cfg.SQSQueueURL), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

// Run blocks until ctx is cancelled or one of the background loops fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return a.outbox.Run(ctx) })

	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Start(ctx, a.handleStatusMessage) })
	}

	g.Go(func() error {
		a.logger.Info("payments http server listening", "addr", a.cfg.HTTPAddr, "broker", a.cfg.Broker)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() {
	if a.consumer != nil {
		a.consumer.Close()
	}
	a.publisher.Close()
	a.store.Close()
}

func (a *App) handleStatusMessage(ctx context.Context, msg amqp091.Delivery) {
	if err := a.hub.HandleStatusMessage(ctx, msg.Body); err != nil {
		a.logger.Error("invalid order status message", "message_id", msg.MessageId, "err", err)
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func Run() error {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}

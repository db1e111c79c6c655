package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/docs"
	"ms-booking/internal/inventory"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/order"
	orderdb "ms-booking/internal/order/db"
	"ms-booking/internal/order/order_api"
	"ms-booking/internal/tickets"
	ticketdb "ms-booking/internal/tickets/db"
	ticketredis "ms-booking/internal/tickets/redis"
	"ms-booking/internal/tickets/ticket_api"
)

func connectDatabase(cfg *config.Config) *bun.DB {
	sqldb, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("[Database] Failed to open MySQL: %v", err)
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("[Database] Failed to connect to MySQL: %v", err)
	}
	log.Println("[Database] MySQL connection successful")

	return bun.NewDB(sqldb, mysqldialect.New())
}

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	lg := logger.NewLogger()
	defer lg.Close()

	bunDB := connectDatabase(cfg)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		lg.Error("DATABASE", "Migrations failed: "+err.Error())
		os.Exit(1)
	}

	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		lg.Error("REDIS", "Failed to connect to Redis: "+err.Error())
		os.Exit(1)
	}
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicExists(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			lg.Warn("KAFKA", "Topic setup failed: "+err.Error())
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
	}

	order.InitStripe()

	renderer := docs.NewRenderer(cfg.Booking.FontPath, cfg.Booking.QRSecret)
	store := docs.NewFileStore(cfg.Booking.DocumentDir)

	var ticketPublisher tickets.EventPublisher
	var orderPublisher order.OrderPublisher
	if producer != nil {
		ticketPublisher = producer
		orderPublisher = producer
	}

	ticketService := tickets.NewTicketService(
		&ticketdb.DB{Bun: bunDB},
		inventory.NewStore(bunDB),
		ticketredis.NewRedis(redisClient),
		ticketPublisher,
		lg,
		cfg.Booking.CartExpiry,
	)
	orderService := order.NewOrderService(
		&orderdb.DB{Bun: bunDB},
		ticketService,
		order.NewStripeGateway(lg),
		renderer,
		store,
		orderPublisher,
		lg,
	)

	ticketHandler := ticket_api.NewHandler(ticketService, renderer, lg)
	orderHandler := order_api.NewHandler(orderService, lg)

	r := chi.NewRouter()
	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", ticketHandler.CreateTickets)
		r.Post("/purchase", ticketHandler.PurchaseTickets)
		r.Get("/{ticketID}", ticketHandler.GetTicket)
		r.Get("/{ticketID}/document", ticketHandler.GetTicketDocument)
	})
	r.Post("/cart", ticketHandler.AddToCart)
	r.Delete("/cart/{ticketID}", ticketHandler.RemoveFromCart)
	r.Delete("/reservations/{ticketID}", ticketHandler.CancelReservation)
	r.Get("/shows/{showID}/tickets", ticketHandler.GetShowTickets)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", orderHandler.PurchaseOrder)
		r.Post("/cancel", orderHandler.CancelPurchase)
		r.Get("/{orderID}", orderHandler.GetOrder)
		r.Get("/{orderID}/cancellation", orderHandler.GetCancellation)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		lg.Info("SERVER", "Booking service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	lg.Info("SERVER", "Booking service shutdown complete")
}

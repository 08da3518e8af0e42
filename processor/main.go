// Command processor delivers notifications published on the redis bus:
// it pushes them to connected websocket clients and sends e-mail.
package main

import (
	"context"
	"log"
	"materials-erp/config"
	"materials-erp/middleware"
	"materials-erp/notify"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config.LoadConfig()
	if config.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the delivery worker")
	}

	client, err := notify.InitRedis(config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	bus := notify.NewRedisBus(client, config.RedisChannel)
	defer bus.Close()

	hub := notify.NewHub()
	mailer := notify.NewMailer(config.SMTPHost, config.SMTPPort, config.SMTPUser, config.SMTPPassword, config.SMTPFrom)
	if mailer == nil {
		log.Println("SMTP_HOST not set, e-mail delivery disabled")
	}
	delivery := notify.NewDelivery(hub, mailer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", notify.ServeWs(hub, middleware.WsAuthenticator))
	server := &http.Server{Addr: ":" + config.WS_PORT, Handler: mux}
	go func() {
		log.Println("WebSocket listening on port " + config.WS_PORT)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("WebSocket server: %v", err)
		}
	}()

	log.Println("Delivering notifications from " + config.RedisChannel)
	if err := bus.Subscribe(ctx, delivery.Handle); err != nil && ctx.Err() == nil {
		log.Printf("Subscription ended: %v", err)
	}
	_ = server.Shutdown(context.Background())
}

package main

import (
	"context"
	"log"
	"materials-erp/config"
	"materials-erp/controllers/idgen"
	"materials-erp/database"
	"materials-erp/middleware"
	"materials-erp/migration"
	"materials-erp/notify"
	"materials-erp/routes"
	seed "materials-erp/seeder"
	"materials-erp/services"
	"materials-erp/storage"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	config.LoadConfig()
	idgen.Init(config.SnowflakeNode)

	if err := database.EnsureDatabaseExists(config.DBName); err != nil {
		log.Fatalf("Failed to ensure database: %v", err)
	}
	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Migrate(db); err != nil {
		log.Fatalf("Failed to auto migrate: %v", err)
	}
	if config.SeedPassword != "" {
		if err := seed.RunSeeders(db, config.SeedPassword); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
	}

	routing, err := config.LoadRouting(config.RoutingFile)
	if err != nil {
		log.Fatalf("Failed to load routing: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With redis the delivery worker (processor) owns the websocket hub and
	// the mailer; without it both run in this process.
	var bus notify.Bus
	if config.RedisAddr != "" {
		client, err := notify.InitRedis(config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		bus = notify.NewRedisBus(client, config.RedisChannel)
	} else {
		memBus := notify.NewMemoryBus(0)
		hub := notify.NewHub()
		delivery := notify.NewDelivery(hub, notify.NewMailer(config.SMTPHost, config.SMTPPort, config.SMTPUser, config.SMTPPassword, config.SMTPFrom))
		go func() {
			if err := memBus.Subscribe(ctx, delivery.Handle); err != nil {
				log.Printf("Notification delivery stopped: %v", err)
			}
		}()
		go serveWebsocket(hub)
		bus = memBus
	}
	defer bus.Close()

	var blobs storage.BlobStore
	if config.S3Bucket != "" {
		uploader, err := storage.NewUploader(storage.S3Config{
			Bucket:           config.S3Bucket,
			Region:           config.S3Region,
			AccessKeyID:      config.S3AccessKeyID,
			SecretAccessKey:  config.S3SecretAccessKey,
			CloudFrontDomain: config.S3CloudFrontDomain,
		})
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		blobs = uploader
	}

	stages := routing.StageTable()
	seq := services.NewSequenceIssuer()
	stock := services.NewStockService(db)
	notifier := services.NewNotificationService(db, routing, bus)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	config.SetupCORS(app)

	routes.Setup(app, db, routes.Services{
		Requests:      services.NewRequestService(db, stages, seq, stock, notifier),
		Purchases:     services.NewPurchaseService(db, stages, seq, stock, notifier, blobs, config.PONumberPrefix),
		Stock:         stock,
		Notifications: notifier,
	})

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Println("Server running on port " + config.APP_PORT)
	if err := app.Listen(":" + config.APP_PORT); err != nil {
		log.Fatal(err)
	}
}

func serveWebsocket(hub *notify.Hub) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", notify.ServeWs(hub, middleware.WsAuthenticator))
	log.Println("WebSocket listening on port " + config.WS_PORT)
	if err := http.ListenAndServe(":"+config.WS_PORT, mux); err != nil {
		log.Printf("WebSocket server stopped: %v", err)
	}
}

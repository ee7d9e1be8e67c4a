package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/cache"
	"billflow/desk/internal/config"
	"billflow/desk/internal/db"
	"billflow/desk/internal/document"
	"billflow/desk/internal/events"
	"billflow/desk/internal/services"
	"billflow/desk/internal/storage"
)

// app holds the shared dependencies of every run mode. Optional infrastructure is nil
// when it is not configured or not reachable.
type app struct {
	cfg         *config.Config
	client      backend.IClient
	redisClient *redis.Client
	mongoClient *mongo.Client
	publisher   events.Publisher

	invoiceService services.IInvoiceService
	uploadService  services.IUploadService
}

func newApp(ctx context.Context, cfg *config.Config, requireRedis bool) (*app, error) {
	a := &app{
		cfg:    cfg,
		client: backend.NewClient(cfg.BackendURL, cfg.BackendTimeout),
	}

	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		if requireRedis {
			return nil, err
		}
		log.Printf("Warning: Redis unavailable, running without invoice cache or task queue: %v", err)
	} else {
		a.redisClient = rdb
	}

	var ledger db.IRenderLedger
	if cfg.MongoURI != "" {
		mongoClient, mongoDb, err := db.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDbName)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mongoClient = mongoClient
		if err := db.EnsureRenderIndexes(ctx, mongoDb); err != nil {
			log.Printf("Warning: could not ensure render ledger indexes: %v", err)
		}
		ledger = db.NewRenderLedger(mongoDb)
	} else {
		log.Println("MONGO_URI not set: render ledger disabled.")
	}

	sink, err := newSink(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = kp
	} else {
		a.publisher = &events.LogPublisher{}
	}

	builder := document.NewBuilder(document.Options{
		ProductName:    cfg.ProductName,
		Tagline:        cfg.ProductTagline,
		ProviderLine:   cfg.ProviderLine,
		CurrencyPrefix: cfg.CurrencyPrefix,
		Location:       cfg.Timezone,
	})
	a.invoiceService = services.NewInvoiceService(
		a.client,
		cache.NewInvoiceCache(a.redisClient, cfg.InvoiceCacheTTL),
		builder,
		document.NewPDFRenderer(cfg.ProviderLine),
		sink,
		ledger,
		a.publisher,
	)
	a.uploadService = services.NewUploadService(a.client, a.publisher, cfg.UploadPurgeDelay, cfg.UploadMaxFiles)
	return a, nil
}

// newSink builds the document sink from SINK. Several entries fan out through a CompositeSink.
func newSink(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	composite := storage.NewCompositeSink()
	if cfg.HasSink("file") {
		fs, err := storage.NewFileSink(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		composite.AddSink(fs)
	}
	if cfg.HasSink("s3") {
		s3Sink, err := storage.NewS3Sink(cfg)
		if err != nil {
			return nil, err
		}
		composite.AddSink(s3Sink)
	}
	if cfg.HasSink("minio") {
		minioSink, err := storage.NewMinioSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		composite.AddSink(minioSink)
	}
	if composite.Len() == 0 {
		return nil, fmt.Errorf("no document sink configured (SINK is empty)")
	}
	return composite, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}
	if err := db.DisconnectDB(a.mongoClient); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	}
	if err := cache.DisconnectRedis(a.redisClient); err != nil {
		log.Printf("Error disconnecting from Redis: %v", err)
	}
}

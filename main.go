package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"billflow/desk/internal/api"
	"billflow/desk/internal/api/handlers"
	"billflow/desk/internal/api/middleware"
	"billflow/desk/internal/backend"
	"billflow/desk/internal/config"
	"billflow/desk/internal/document"
	"billflow/desk/internal/tasks"
	"billflow/desk/internal/uploadqueue"
)

var (
	runMode     = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default), 'upload', 'invoice', 'list', 'renders'")
	invoiceID   = flag.Int("id", 0, "Invoice id (invoice mode)")
	displayName = flag.String("name", "", "Name printed on the invoice (invoice mode, defaults to the username)")
	publish     = flag.Bool("publish", false, "Store the invoice in the configured sinks instead of writing it to -o (invoice mode)")
	outPath     = flag.String("o", "", "Output file (invoice mode, defaults to the suggested filename)")
	username    = flag.String("user", os.Getenv("BILLFLOW_USER"), "Backend username (CLI modes)")
	password    = flag.String("password", os.Getenv("BILLFLOW_PASSWORD"), "Backend password (CLI modes)")
	workers     = flag.Int("workers", 4, "Concurrent render tasks (bg mode)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch cfg.RunMode {
	case "api", "bg", "all":
		runServers(cfg)
	case "upload", "invoice", "list", "renders":
		if err := runCommand(cfg); err != nil {
			log.Fatalf("%s failed: %v", cfg.RunMode, err)
		}
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}
}

func runServers(cfg *config.Config) {
	requireRedis := cfg.RunMode != "api"
	a, err := newApp(context.Background(), cfg, requireRedis)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    "127.0.0.1:" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on %s\n", serviceSrv.Addr)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var rateLimiter *middleware.RateLimiterMiddleware
	// Without Redis the API publishes invoices inside the request.
	var enqueuer handlers.IAsynqClient
	if a.redisClient != nil {
		taskClient := tasks.NewClient(a.redisClient)
		defer taskClient.Close()
		enqueuer = taskClient
	}

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		var router http.Handler
		router, rateLimiter = api.SetupRouter(cfg, a.invoiceService, a.uploadService, enqueuer)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")
		processor := tasks.NewTaskProcessor(a.invoiceService)
		srv, mux := tasks.SetupServer(a.redisClient, processor, *workers)
		backgroundTaskSrv = srv
		if err := backgroundTaskSrv.Start(mux); err != nil {
			log.Fatalf("Background task server error: %v", err)
		}
		fmt.Println("Background task server started.")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if rateLimiter != nil {
		rateLimiter.Stop()
	}

	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}

// runCommand runs one of the CLI modes against the backend as the given user.
func runCommand(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if *username == "" || *password == "" {
		return fmt.Errorf("-user and -password (or BILLFLOW_USER/BILLFLOW_PASSWORD) are required")
	}
	session, err := a.client.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	log.Printf("Logged in as %s (user %d)", session.Username, session.UserID)

	switch cfg.RunMode {
	case "upload":
		return runUpload(ctx, a, session, flag.Args())
	case "invoice":
		return runInvoice(ctx, a, session)
	case "renders":
		return runRenders(ctx, a, session)
	default:
		return runList(ctx, a, session)
	}
}

func runUpload(ctx context.Context, a *app, session *backend.Session, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files given; pass paths after the flags")
	}
	report, err := a.uploadService.UploadPaths(ctx, session, paths)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tSTATUS\tMESSAGE")
	for _, item := range report.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Name, uploadqueue.FormatBytes(item.Size), item.Status, item.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if skipped := len(paths) - len(report.Items); skipped > 0 {
		fmt.Printf("%d file(s) skipped: allowed types are %v\n", skipped, uploadqueue.AllowedExtensions())
	}
	fmt.Printf("%d completed, %d failed\n", report.Result.Succeeded, report.Result.Failed)
	if report.Result.Failed > 0 {
		return fmt.Errorf("%d upload(s) failed", report.Result.Failed)
	}
	return nil
}

func runInvoice(ctx context.Context, a *app, session *backend.Session) error {
	if *invoiceID <= 0 {
		return fmt.Errorf("-id is required")
	}
	if *publish {
		rec, err := a.invoiceService.Publish(ctx, session, *invoiceID, *displayName)
		if err != nil {
			return err
		}
		fmt.Printf("Published %s as %s\n", rec.Filename, rec.Reference)
		for _, loc := range rec.Locations {
			fmt.Printf("  %s\n", loc)
		}
		return nil
	}

	rendered, err := a.invoiceService.Render(ctx, session, *invoiceID, *displayName)
	if err != nil {
		return err
	}
	path := *outPath
	if path == "" {
		path = rendered.Filename()
	}
	if err := os.WriteFile(path, rendered.PDF, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(rendered.PDF))
	return nil
}

func runList(ctx context.Context, a *app, session *backend.Session) error {
	list, err := a.client.WithToken(session.Token).ListInvoices(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMONTH\tSTATUS\tTOTAL")
	for _, inv := range list.Invoices {
		total := "-"
		if inv.Costs != nil && inv.Costs.TotalAmount != nil {
			total = a.cfg.CurrencyPrefix + document.FormatAmount(*inv.Costs.TotalAmount)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", inv.ID, inv.Month, inv.Status, total)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d invoice(s), %s spent\n", list.TotalInvoices, a.cfg.CurrencyPrefix+document.FormatAmount(list.TotalSpent))
	return nil
}

func runRenders(ctx context.Context, a *app, session *backend.Session) error {
	if *invoiceID <= 0 {
		return fmt.Errorf("-id is required")
	}
	records, err := a.invoiceService.Renders(ctx, session, *invoiceID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE	CREATED	SHA256	LOCATIONS")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\n", rec.Reference, rec.CreatedAt.Format(time.RFC3339), rec.SHA256, strings.Join(rec.Locations, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d published document(s) for invoice %d\n", len(records), *invoiceID)
	return nil
}

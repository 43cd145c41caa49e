// Command bulksync ingests Gmail messages matching a search query into the
// archive database, downloading referenced images along the way.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/michaelroy-yvr/email-archive-2026/internal/config"
	"github.com/michaelroy-yvr/email-archive-2026/internal/db"
	"github.com/michaelroy-yvr/email-archive-2026/internal/gmail"
	"github.com/michaelroy-yvr/email-archive-2026/internal/htmlrw"
	"github.com/michaelroy-yvr/email-archive-2026/internal/images"
	"github.com/michaelroy-yvr/email-archive-2026/internal/models"
	"github.com/michaelroy-yvr/email-archive-2026/internal/pipeline"
	"github.com/michaelroy-yvr/email-archive-2026/internal/syncjob"
)

func main() {
	var (
		query       = flag.String("query", "", "Gmail search query, e.g. 'label:promotions after:2024/01/01'")
		maxMessages = flag.Int64("max", 100, "maximum number of messages to sync")
		jobStatus   = flag.String("status", "", "print the status of a sync job id and exit")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	store := db.NewStore(pool)

	if *jobStatus != "" {
		job, err := db.GetSyncJob(ctx, pool, *jobStatus)
		if err != nil {
			log.Fatalf("Failed to look up sync job: %v", err)
		}
		fmt.Printf("job %s: %s\n", job.ID, job.Status)
		fmt.Printf("  found=%d processed=%d skipped=%d failed=%d\n",
			job.MessagesFound, job.MessagesProcessed, job.MessagesSkipped, job.MessagesFailed)
		if job.LastError != "" {
			fmt.Printf("  last error: %s\n", job.LastError)
		}
		return
	}

	httpClient, err := gmail.NewAuthenticatedClient(ctx, cfg.GmailCredentialsPath, cfg.GmailTokenPath)
	if err != nil {
		log.Fatalf("Failed to authenticate with Gmail: %v", err)
	}
	client, err := gmail.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Failed to create Gmail client: %v", err)
	}

	downloader := images.NewDownloader(cfg.StorageRoot, log)
	rewriter := htmlrw.NewRewriter(cfg.ImageBaseURL, log)
	processor := pipeline.NewProcessor(store, downloader, rewriter, log)
	runner := syncjob.NewRunner(client, processor, store, log)

	job, err := runner.Run(ctx, *query, *maxMessages)
	if err != nil {
		if job != nil {
			printSummary(job)
		}
		log.Fatalf("Sync failed: %v", err)
	}

	printSummary(job)
}

func printSummary(job *models.SyncJob) {
	fmt.Printf("\nSync %s (job %s)\n", job.Status, job.ID)
	fmt.Printf("  messages found:     %d\n", job.MessagesFound)
	fmt.Printf("  newly archived:     %d\n", job.MessagesProcessed)
	fmt.Printf("  already archived:   %d\n", job.MessagesSkipped)
	fmt.Printf("  failed:             %d\n", job.MessagesFailed)
	if job.LastError != "" {
		fmt.Printf("  last error:         %s\n", job.LastError)
	}
}

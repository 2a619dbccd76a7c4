// Package retrieval assembles the retrieval service: options, wiring and
// the HTTP server lifecycle.
package retrieval

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/pkg/infra/app"
)

// Name is the name of the application. It also names the config file and
// the RETRIEVAL_X_ environment prefix.
const Name = "retrieval-x"

const description = `retrieval-x ranks a user's documents and web pages against a query.

This server provides:
  - Document and URL management per user
  - Chunking, embedding and background indexing
  - Composite ranking by similarity, credibility, recency and category
  - Cited answers generated from the top ranked chunks`

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("RAG retrieval and ranking service"),
		app.WithDescription(description),
		app.WithOptions(opts),
		app.WithRunFunc(func(ctx context.Context) error {
			return Run(ctx, opts)
		}),
	)
}

// Run runs the retrieval service until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	printBanner(opts)

	// 初始化日志
	opts.Log.AddInitialField("service.name", Name)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting retrieval service...")

	srv, err := NewServer(ctx, opts)
	if err != nil {
		return err
	}
	logger.Info("Retrieval service is ready")
	return srv.Run(ctx)
}

func printBanner(opts *Options) {
	fmt.Printf("Starting %s %s...\n", Name, app.GetVersion())
	fmt.Printf("  Storage: %s\n", opts.Storage.Backend)
	fmt.Printf("  Embedding: %s (%s)\n", opts.Embedding.Provider, opts.Embedding.Model)
	fmt.Printf("  Chat: %s (%s)\n", opts.Chat.Provider, opts.Chat.Model)
}

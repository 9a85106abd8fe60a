package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/webcontainer-demo/livedemo/common"
	"github.com/webcontainer-demo/livedemo/gateway"
	"github.com/webcontainer-demo/livedemo/watcher"
)

type serveArgument struct {
	template templateArgument

	endpoint       string
	basePath       string
	writable       bool
	watch          bool
	debounce       time.Duration
	cacheSize      int
	cacheExpiry    time.Duration
	originsAllowed []string
}

var (
	serveArgs serveArgument

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Publish the template manifest and serve it together with the file contents",
		Run:   serve,
	}
)

func init() {
	bindTemplateFlags(serveCmd, &serveArgs.template)
	serveCmd.Flags().StringVar(&serveArgs.endpoint, "endpoint", ":8080", "HTTP endpoint to listen on")
	serveCmd.Flags().StringVar(&serveArgs.basePath, "base", gateway.DefaultBasePath, "URL prefix of all routes")
	serveCmd.Flags().BoolVar(&serveArgs.writable, "writable", false, "Allow template files to be written through the API")
	serveCmd.Flags().BoolVar(&serveArgs.watch, "watch", true, "Republish the manifest when the template changes")
	serveCmd.Flags().DurationVar(&serveArgs.debounce, "debounce", 100*time.Millisecond, "Quiet period before changes are republished")
	serveCmd.Flags().IntVar(&serveArgs.cacheSize, "cache-size", 256, "Max number of cached file contents")
	serveCmd.Flags().DurationVar(&serveArgs.cacheExpiry, "cache-expiry", time.Minute, "Lifetime of cached file contents")
	serveCmd.Flags().StringSliceVar(&serveArgs.originsAllowed, "origins", nil, "Allowed CORS origins, all if empty")

	rootCmd.AddCommand(serveCmd)
}

// startGateway publishes the manifest before returning, so the gateway never serves without one, and starts
// watching the template if enabled. Watch failures are delivered on the returned channel.
func startGateway(ctx context.Context, args serveArgument) (*gateway.Server, <-chan error, error) {
	publisher := newPublisher(args.template)

	server := gateway.New(publisher, gateway.Config{
		Endpoint:       args.endpoint,
		BasePath:       args.basePath,
		Writable:       args.writable,
		CacheSize:      args.cacheSize,
		CacheExpiry:    args.cacheExpiry,
		OriginsAllowed: args.originsAllowed,
	}, common.StandardLogOption())

	if _, err := publisher.Publish(); err != nil {
		return nil, nil, errors.WithMessage(err, "failed to publish manifest")
	}

	watchErr := make(chan error, 1)
	if args.watch {
		w := watcher.New(publisher, watcher.Config{Debounce: args.debounce}, common.StandardLogOption())
		go func() {
			if err := w.Run(ctx); err != nil {
				watchErr <- err
			}
		}()
	}

	return server, watchErr, nil
}

func serve(*cobra.Command, []string) {
	ctx, stop := signalContext()
	defer stop()

	server, watchErr, err := startGateway(ctx, serveArgs)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start gateway")
	}

	go func() {
		if err := <-watchErr; err != nil {
			logrus.WithError(err).Fatal("Failed to watch template")
		}
	}()

	if err := server.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Gateway stopped")
	}
}

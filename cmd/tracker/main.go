package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/tracker"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml (poll settings)")
		serverURL   = flag.String("server", "http://localhost:8080", "tracker server base URL")
		token       = flag.String("token", os.Getenv("INITIATIVE_TOKEN"), "access token (default $INITIATIVE_TOKEN)")
		campaignID  = flag.Uint("campaign", 0, "campaign to follow")
		push        = flag.Bool("push", true, "refresh on push notifications as well as on the timer")
		clearFrames = flag.Bool("clear", true, "clear the screen before each frame")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *campaignID == 0 {
		fmt.Fprintln(os.Stderr, "-campaign is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := tracker.NewTextRenderer(os.Stdout)
	renderer.Clear = *clearFrames

	fetcher := tracker.NewHTTPFetcher(*serverURL, *token, cfg.Initiative.RequestTimeout)
	poller := tracker.NewPoller(fetcher, renderer, tracker.Options{
		Interval:       cfg.Initiative.PollInterval,
		RequestTimeout: cfg.Initiative.RequestTimeout,
	}, log.Named("poller"))
	poller.Select(uint(*campaignID))

	if *push {
		url, err := tracker.SubscribeURL(*serverURL, *token, uint(*campaignID))
		if err != nil {
			log.Fatal("invalid server URL", zap.Error(err))
		}
		go tracker.NewSubscriber(url, poller, 0, log.Named("push")).Run(ctx)
	}

	poller.Run(ctx)
}

// newLogger writes to stderr so log lines do not mix with rendered frames.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return zc.Build()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/ussfs"
	"github.com/brettbedarf/ussfs/config"
	"github.com/brettbedarf/ussfs/internal/metrics"
	"github.com/brettbedarf/ussfs/internal/util"
)

const usage = `usage: ussfs [flags] <command> [args]

commands:
  profiles                      list configured profiles
  ls <path>                     list a remote directory
  tree [-depth n] <path>        print a remote directory tree
  cat <path>                    print a remote file
  get <path> <local>            download a remote file
  put <local> <path>            upload a local file, creating it if needed
  mkdir <path>                  create a remote directory
  touch <path>                  create an empty remote file
  rm [-r] <path>                delete a remote file or directory
  mount [-u] <path> <mnt>       mount a remote directory read-only

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configPath  string
		verbose     int
		profileName string
		profileDir  string
		workDir     string
		metricsAddr string
		showVersion bool
	)
	flags := flag.NewFlagSet("ussfs", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	flags.StringVar(&configPath, "config", "", "Path to a yaml or json config file")
	flags.StringVar(&configPath, "c", "", "--config (shorthand)")
	flags.IntVar(&verbose, "verbose", 0, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flags.IntVar(&verbose, "v", 0, "--verbose (shorthand)")
	flags.StringVar(&profileName, "profile", "", "Profile to connect with. Default is the default profile.")
	flags.StringVar(&profileName, "p", "", "--profile (shorthand)")
	flags.StringVar(&profileDir, "profile-dir", "", "Directory holding profiles")
	flags.StringVar(&workDir, "work-dir", "", "Directory for local copies of remote files")
	flags.StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address i.e. :9100")
	flags.BoolVar(&showVersion, "version", false, "Print the version and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if showVersion {
		fmt.Fprintln(stdout, "ussfs", ussfs.Version)
		return 0
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	cfg, err := loadConfig(configPath, &config.ConfigOverride{
		LogLvl:      nonZero(verbose),
		ProfileDir:  nonZero(profileDir),
		WorkDir:     nonZero(workDir),
		MetricsAddr: nonZero(metricsAddr),
	})
	if err != nil {
		fmt.Fprintf(stderr, "ussfs: %v\n", err)
		return 1
	}

	util.InitializeLoggerTo(stderr, cfg.LogLvl)
	logger := util.GetLogger("main")
	logger.Debug().Str("profileDir", cfg.ProfileDir).Str("workDir", cfg.WorkDir).Msg("Config loaded")

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a, err := newApp(cfg, profileName, stdout)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.close()

	cmd, cmdArgs := flags.Arg(0), flags.Args()[1:]
	if err := a.dispatch(ctx, cmd, cmdArgs); err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "ussfs %s: %v\n", cmd, err)
			flags.Usage()
			return 2
		}
		logger.Error().Err(err).Str("command", cmd).Msg("Command failed")
		return 1
	}
	return 0
}

// loadConfig merges the config file, if any, with flag overrides. Flags win.
func loadConfig(path string, flagOverride *config.ConfigOverride) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path != "" {
		fileOverride, err := config.LoadConfigOverrideFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileOverride)
	}
	cfg.Merge(flagOverride)
	return cfg, nil
}

func serveMetrics(addr string) *http.Server {
	logger := util.GetLogger("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

// nonZero returns nil for zero values so unset flags don't override
func nonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return util.Pointer(v)
}

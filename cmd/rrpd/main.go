package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey-austin/rrplayer/internal/adapters/mqttserver"
	embeddedmqtt "github.com/mikey-austin/rrplayer/internal/modules/embedded_mqtt"
	"github.com/mikey-austin/rrplayer/internal/modules/jukebox"
	"github.com/mikey-austin/rrplayer/internal/playback"
	"github.com/mikey-austin/rrplayer/internal/rrpd"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  string
		broker      string
		identity    string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logSource   bool
		logUTC      bool
		daemonize   bool
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := rrpd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (console|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logSource, "log-source", false, "include caller in logs")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&daemonize, "daemonize", false, "run as daemon")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := rrpd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, overrides{
		broker:    broker,
		identity:  identity,
		topicBase: topicBase,
		logLevel:  logLevel,
		logFormat: logFormat,
		logOutput: logOutput,
		logSource: logSource,
		logUTC:    logUTC,
		daemonize: daemonize,
	})

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if err := validateConfig(cfg, moduleOnly); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger := rrpd.NewLogger(rrpd.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfg, logger, moduleOnly); err != nil {
		logger.Error("rrpd failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg rrpd.Config, logger *zap.Logger, moduleOnly string) error {
	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedConfig(cfg).URL() {
		if err := startEmbeddedBroker(ctx, cancel, cfg, logger); err != nil {
			return fmt.Errorf("embedded mqtt: %w", err)
		}
		skipEmbedded = true
	}

	logger.Info("rrpd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.Strings("modules", enabledModules(cfg)),
	)
	if cfg.Server.Daemonize {
		logger.Warn("daemonize is not supported; running in foreground")
	}

	var client *mqttserver.Client
	if moduleOnly != "embedded_mqtt" {
		var err error
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  "rrpd-" + cfg.Server.Identity,
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
			Logger:    logger.With(zap.String("component", "mqtt")),
			Debug:     cfg.Server.LogLevel == "debug",
			WillTopic: rrp.TopicPresence(cfg.Server.TopicBase, cfg.Modules.Jukebox.NodeID),
		})
		if err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
		defer client.Close()
	}

	modules, err := buildModules(cfg, client, logger, moduleOnly, skipEmbedded, cancel)
	if err != nil {
		return fmt.Errorf("failed to build modules: %w", err)
	}

	supervisor := rrpd.Supervisor{Logger: logger}
	return supervisor.Run(ctx, modules)
}

type overrides struct {
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
	daemonize bool
}

func applyOverrides(cfg *rrpd.Config, o overrides) {
	if o.broker != "" {
		cfg.Server.Broker = o.broker
	}
	if o.identity != "" {
		cfg.Server.Identity = o.identity
	}
	if o.topicBase != "" {
		cfg.Server.TopicBase = o.topicBase
	}
	if o.logLevel != "" {
		cfg.Server.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Server.LogFormat = o.logFormat
	}
	if o.logOutput != "" {
		cfg.Server.LogOutput = o.logOutput
	}
	if o.logSource {
		cfg.Server.LogSource = true
	}
	if o.logUTC {
		cfg.Server.LogUTC = true
	}
	if o.daemonize {
		cfg.Server.Daemonize = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = rrp.BaseTopic
	}
	if cfg.Server.Identity == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "rrpd"
		}
		cfg.Server.Identity = host
	}
	if cfg.Modules.Jukebox.NodeID == "" {
		cfg.Modules.Jukebox.NodeID = "jukebox"
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedConfig(*cfg).URL()
	}
}

func validateConfig(cfg rrpd.Config, moduleOnly string) error {
	if cfg.Server.Broker == "" && !(moduleOnly == "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled) {
		return errors.New("broker is required")
	}
	if cfg.Modules.Playback.Enabled && !cfg.Modules.Jukebox.Enabled {
		return errors.New("playback requires the jukebox module")
	}
	if cfg.Modules.Jukebox.Enabled && len(cfg.Modules.Jukebox.Roots) == 0 {
		return errors.New("jukebox requires at least one root")
	}
	if v := cfg.Modules.Playback.Volume; v < 0 || v > 1 {
		return fmt.Errorf("playback volume %.2f outside 0..1", v)
	}
	return nil
}

func buildModules(cfg rrpd.Config, client *mqttserver.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool, quit context.CancelFunc) ([]rrpd.ModuleRunner, error) {
	modules := []rrpd.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
			if err != nil {
				return nil, err
			}
			modules = append(modules, rrpd.ModuleRunner{
				Name: "embedded_mqtt",
				Run:  mod.Run,
			})
		}
	}

	if cfg.Modules.Jukebox.Enabled && (moduleOnly == "" || moduleOnly == "jukebox") {
		version, _ := rrpd.BuildVersion()
		jb := cfg.Modules.Jukebox
		mod, err := jukebox.NewModule(logger.With(zap.String("module", "jukebox")), client, jukebox.Config{
			NodeID:         jb.NodeID,
			TopicBase:      cfg.Server.TopicBase,
			Name:           cfg.Server.Identity,
			Version:        version,
			Roots:          jb.Roots,
			Extensions:     jb.MusicExtensions,
			PlaylistFolder: jb.PlaylistFolder,
			Watch:          jb.Watch,
			IdleBackoff:    jb.IdleBackoff(),
			MaxRandomPicks: jb.MaxRandomPicks,
		})
		if err != nil {
			return nil, err
		}
		mod.OnQuit(quit)
		modules = append(modules, rrpd.ModuleRunner{
			Name: "jukebox",
			Run:  mod.Run,
		})

		if cfg.Modules.Playback.Enabled {
			pb := cfg.Modules.Playback
			driver, err := playback.NewDriver(playback.DriverConfig{
				Driver:   pb.Driver,
				VLCURL:   pb.VLCURL,
				VLCUser:  pb.VLCUser,
				VLCPass:  pb.VLCPass,
				Timeout:  pb.Timeout(),
				Pipeline: pb.Pipeline,
				Device:   pb.Device,
			})
			if err != nil {
				return nil, err
			}
			ctrl := playback.NewController(logger.With(zap.String("module", "playback")), driver, mod, mod, playback.Config{
				Tick:       pb.Tick(),
				Volume:     pb.Volume,
				VolumeStep: pb.VolumeStep,
				Autoplay:   pb.Autoplay,
			})
			mod.AttachPlayer(ctrl)
			modules = append(modules, rrpd.ModuleRunner{
				Name: "playback",
				Run:  ctrl.Run,
			})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg rrpd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.Jukebox.Enabled {
		out = append(out, "jukebox")
	}
	if cfg.Modules.Playback.Enabled {
		out = append(out, "playback")
	}
	return out
}

func printResolvedConfig(cfg rrpd.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s identity=%s topic_base=%s log_level=%s log_format=%s log_output=%s log_source=%t log_utc=%t daemonize=%t\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		cfg.Server.LogSource,
		cfg.Server.LogUTC,
		cfg.Server.Daemonize,
	)
	jb := cfg.Modules.Jukebox
	fmt.Fprintf(os.Stdout, "jukebox enabled=%t node_id=%s roots=%v playlist_folder=%s watch=%t\n",
		jb.Enabled, jb.NodeID, jb.Roots, jb.PlaylistFolder, jb.Watch)
	pb := cfg.Modules.Playback
	fmt.Fprintf(os.Stdout, "playback enabled=%t driver=%s autoplay=%t\n", pb.Enabled, pb.Driver, pb.Autoplay)
}

func embeddedConfig(cfg rrpd.Config) embeddedmqtt.Config {
	e := cfg.Modules.EmbeddedMQTT
	return embeddedmqtt.Config{
		Listen:         e.Listen,
		AllowAnonymous: e.AllowAnonymous,
		Username:       e.Username,
		Password:       e.Password,
		TopicBase:      cfg.Server.TopicBase,
		TLSCA:          e.TLSCA,
		TLSCert:        e.TLSCert,
		TLSKey:         e.TLSKey,
	}
}

// startEmbeddedBroker runs the broker ahead of the supervisor so the MQTT
// client can connect to it.
func startEmbeddedBroker(ctx context.Context, cancel context.CancelFunc, cfg rrpd.Config, logger *zap.Logger) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()

	select {
	case <-mod.Ready():
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		return errors.New("embedded mqtt not ready")
	}

	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mikey-austin/rrplayer/internal/adapters/clock"
	"github.com/mikey-austin/rrplayer/internal/adapters/config"
	"github.com/mikey-austin/rrplayer/internal/adapters/identity"
	"github.com/mikey-austin/rrplayer/internal/adapters/idgen"
	"github.com/mikey-austin/rrplayer/internal/adapters/mqtt"
	"github.com/mikey-austin/rrplayer/internal/adapters/output"
	"github.com/mikey-austin/rrplayer/internal/core"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

type app struct {
	service core.Service
	printer output.Printer
	quiet   bool
	json    bool
	timeout time.Duration
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "rrp",
		Short:        "rrplayer jukebox client",
		SilenceUsage: true,
	}

	var (
		broker    string
		topicBase string
		node      string
		userID    string
		userName  string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", rrp.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&node, "node", "n", "", "jukebox node id, name or alias")
	root.PersistentFlags().StringVar(&userID, "user-id", "", "listener user id sent with hello")
	root.PersistentFlags().StringVar(&userName, "user-name", "", "listener name sent with hello")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor {
			pterm.DisableColor()
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == rrp.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}
		userID, userName = defaultUser(firstNonEmpty(userID, cfg.UserID), firstNonEmpty(userName, cfg.UserName))

		store, err := identity.NewStore()
		if err != nil {
			return err
		}

		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			Username:  firstNonEmpty(userOpt, cfg.Auth.User),
			Password:  firstNonEmpty(passOpt, cfg.Auth.Pass),
			TLSCA:     firstNonEmpty(tlsCA, cfg.TLS.CA),
			TLSCert:   firstNonEmpty(tlsCert, cfg.TLS.Cert),
			TLSKey:    firstNonEmpty(tlsKey, cfg.TLS.Key),
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect", err)
		}

		coreCfg := core.Config{
			Broker:    broker,
			TopicBase: topicBase,
			Node:      firstNonEmpty(node, cfg.Node),
			UserID:    userID,
			UserName:  userName,
			Aliases:   cfg.Aliases,
		}

		service := core.Service{
			Broker:   mqttClient,
			Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
			Clock:    clock.Clock{},
			IDGen:    idgen.Generator{},
			Identity: store,
			Config:   coreCfg,
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{}
		} else {
			printer = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			printer: printer,
			quiet:   quiet,
			json:    jsonOut,
			timeout: timeout,
		}))
		return nil
	}

	root.AddCommand(lsCommand())
	root.AddCommand(helloCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(skipCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(quitCommand())
	root.AddCommand(banCommand())
	root.AddCommand(upvoteCommand())
	root.AddCommand(searchCommand())
	root.AddCommand(scheduleCommand())
	root.AddCommand(addCommand())
	root.AddCommand(smartlistsCommand())
	root.AddCommand(activateCommand())
	root.AddCommand(listenersCommand())

	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// done prints "ok" for commands without a result unless quiet.
func (a *app) done(err error) error {
	if err != nil {
		return err
	}
	if a.quiet {
		return nil
	}
	return a.printer.Print(struct{}{})
}

func defaultUser(id string, name string) (string, string) {
	if id != "" && name != "" {
		return id, name
	}
	usr, err := user.Current()
	if err != nil || usr == nil {
		host, _ := os.Hostname()
		return firstNonEmpty(id, host, "rrp"), firstNonEmpty(name, host, "rrp")
	}
	return firstNonEmpty(id, usr.Uid), firstNonEmpty(name, usr.Username)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func usageError(format string, args ...any) error {
	return &core.CLIError{Code: core.ExitUsage, Msg: fmt.Sprintf(format, args...)}
}

// Package cli implements the pcscctl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/internal/logging"
	"github.com/malivvan/pcscctl/internal/usbreset"
	"github.com/malivvan/pcscctl/runner"
	"github.com/malivvan/pcscctl/scard"
	"github.com/malivvan/pcscctl/value"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix   = "PCSC"
	defaultWait = 10 * time.Second
)

// device is the part of *scard.Session the client drives.
type device interface {
	runner.Transport
	runner.Watcher
	WaitCard(ctx context.Context, wait time.Duration) error
	CardUID() ([]byte, error)
	Close() error
}

var (
	openDevice = func(reader string, opts scard.Options) (device, error) {
		s, err := scard.Open(reader, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	listReaders = scard.ListReaders
	resetUSB    = usbreset.Reset
)

// settings are the client options after flags and PCSC_* variables are
// merged by viper.
type settings struct {
	Config  string
	Group   int
	Verbose int
	Force   bool
	Async   bool
	List    bool
	Reset   string
	Wait    time.Duration
	Data    string
}

func loadSettings(v *viper.Viper) settings {
	return settings{
		Config:  v.GetString("config"),
		Group:   v.GetInt("group"),
		Verbose: v.GetInt("verbose"),
		Force:   v.GetBool("force"),
		Async:   v.GetBool("async"),
		List:    v.GetBool("list"),
		Reset:   v.GetString("reset"),
		Wait:    v.GetDuration("wait"),
		Data:    v.GetString("data"),
	}
}

func New(version string) (root *cobra.Command) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root = &cobra.Command{
		Use:           "pcscctl",
		Short:         "run declarative MIFARE command groups on a PC/SC reader",
		Version:       version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			logging.SetVerbosity(v.GetInt("verbose"))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, loadSettings(v))
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr(err)
	})

	execCmd := &cobra.Command{
		Use:   "exec <uid>",
		Short: "execute one configured command and print its result",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execOne(cmd, loadSettings(v), args[0])
		},
	}
	execCmd.Flags().StringP("data", "d", "", "write data override, a string or hex tokens such as 0xA0,0x01")
	root.AddCommand(execCmd)

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list readers known to the PC/SC daemon",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReaders(cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cmd.Root().Version)
		},
	})

	root.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
	root.PersistentFlags().StringP("config", "c", "", "path to the card configuration (json or yaml)")
	root.PersistentFlags().CountP("verbose", "v", "increase verbosity")
	root.PersistentFlags().Duration("wait", defaultWait, "how long to wait for a card in synchronous mode")
	root.Flags().IntP("group", "g", 0, "command group to execute")
	root.Flags().BoolP("force", "f", false, "continue after a failed command")
	root.Flags().BoolP("async", "a", false, "monitor the reader and run the group on every inserted card")
	root.Flags().BoolP("list", "l", false, "list readers and exit unless --config is given")
	root.Flags().StringP("reset", "r", "", "reset the usb device at this usbfs path and exit")
	return root
}

func run(cmd *cobra.Command, s settings) error {
	log := logging.L
	if s.Reset != "" {
		log.Info("resetting usb device", "path", s.Reset)
		return resetUSB(s.Reset)
	}
	if s.List {
		if err := printReaders(cmd.OutOrStdout()); err != nil {
			return err
		}
		if s.Config == "" {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, dev, err := open(s)
	if err != nil {
		return err
	}
	defer dev.Close()

	opts := runner.Options{Group: s.Group, Forced: s.Force, Verbose: cfg.Verbose > 0, Logger: log}
	if s.Async {
		log.Info("waiting for card events (ctrl-C to quit)", "reader", cfg.Reader, "group", s.Group)
		m := &runner.Monitor{Reader: cfg.Reader, Transport: dev, Table: cfg.Commands, Options: opts}
		return m.Watch(ctx, dev)
	}

	if err := waitCard(ctx, dev, cfg, s.Wait); err != nil {
		return err
	}
	_, err = runner.RunGroup(ctx, dev, cfg.Commands, opts)
	return err
}

func execOne(cmd *cobra.Command, s settings, uid string) error {
	override, err := parseData(s.Data)
	if err != nil {
		return usageErr(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, dev, err := open(s)
	if err != nil {
		return err
	}
	defer dev.Close()

	c, err := cfg.Lookup(uid)
	if err != nil {
		return err
	}
	if err := waitCard(ctx, dev, cfg, s.Wait); err != nil {
		return err
	}
	out, err := runner.Execute(ctx, dev, c, override)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(value.Tokens(out), " "))
	}
	return nil
}

// open loads the configuration and opens its reader.
func open(s settings) (*config.Config, device, error) {
	if s.Config == "" {
		return nil, nil, fmt.Errorf("%w: --config is required", ErrUsage)
	}
	cfg, err := config.LoadFile(s.Config, s.Verbose)
	if err != nil {
		return nil, nil, err
	}
	logging.SetVerbosity(cfg.Verbose)
	logging.Debugf("config uid=%s keys=%d cmds=%d", cfg.UID, cfg.Keys.Len(), cfg.Commands.Len())

	dev, err := openDevice(cfg.Reader, scard.Options{MaxDev: cfg.MaxDev, Timeout: cfg.TimeoutDuration(), Logger: logging.L})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to reader=%s: %w", cfg.Reader, err)
	}
	return cfg, dev, nil
}

func waitCard(ctx context.Context, dev device, cfg *config.Config, wait time.Duration) error {
	if err := dev.WaitCard(ctx, wait); err != nil {
		return fmt.Errorf("detect card on reader=%s: %w", cfg.Reader, err)
	}
	uid, err := dev.CardUID()
	if err != nil {
		return fmt.Errorf("read card uid: %w", err)
	}
	logging.L.Info("card detected", "reader", cfg.Reader, "uid", fmt.Sprintf("%X", uid))
	return nil
}

func printReaders(w io.Writer) error {
	logging.Infof("scanning pcsc readers")
	readers, err := listReaders(config.DefaultMaxDev)
	if err != nil {
		return err
	}
	for i, name := range readers {
		fmt.Fprintf(w, "reader[%d]=%s\n", i, name)
	}
	return nil
}

// parseData reads an exec override: hex tokens separated by commas or
// spaces, or a plain string taken byte for byte.
func parseData(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	for _, f := range fields {
		if !strings.HasPrefix(f, "0x") && !strings.HasPrefix(f, "0X") {
			return []byte(s), nil
		}
	}
	return value.Decode(fields, 0)
}

// Package cmd holds the gridio command tree.
package cmd

import (
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	keyConfig   = "config"
	keyLogLevel = "log-level"
)

// app is the state the commands of one root share.
type app struct {
	cfg *viper.Viper
}

// NewRoot builds the command tree. Each call has its own configuration.
func NewRoot() *cobra.Command {
	a := &app{cfg: viper.New()}
	a.cfg.SetEnvPrefix(gridio.EnvPrefix)
	a.cfg.AutomaticEnv()

	root := &cobra.Command{
		Use:   "gridio",
		Short: "Inspect, check and subset grid files.",
		Long: `gridio reads and writes gridded and station (id-data) model files.

Header overrides come from a TOML configuration file given with --config,
from the flags below, or from environment variables named GRIDIO_<KEY>,
for example GRIDIO_P_ALP or GRIDIO_UNIT_REPAIR.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return a.setConfig() },
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "TOML configuration file")
	flags.Int(keyLogLevel, 2, "log level, 0 (fatal only) to 3 (info)")
	flags.Float64("kpa-max", header.DefaultKPaMax, "pressures below this are read as kilopascals")
	flags.Float64("mb-max", header.DefaultMbMax, "pressures below this are read as millibars")
	flags.Bool("unit-repair", true, "rescale pressures that look like kilopascals or millibars")
	a.bind(flags, map[string]string{
		keyConfig:     keyConfig,
		keyLogLevel:   keyLogLevel,
		"kpa-max":     gridio.KeyKPaMax,
		"mb-max":      gridio.KeyMbMax,
		"unit-repair": gridio.KeyUnitRepair,
	})

	root.AddCommand(
		a.headerCmd(),
		a.checkCmd(),
		a.extractCmd(),
		a.rangeCmd(),
		a.createCmd(),
		a.recvCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := a.cfg.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// setConfig reads the configuration file, if there is one.
func (a *app) setConfig() error {
	if path := a.cfg.GetString(keyConfig); path != "" {
		a.cfg.SetConfigFile(path)
		a.cfg.SetConfigType("toml")
		if err := a.cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridio: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// session starts a session logging to the command's error output. The
// caller closes it.
func (a *app) session(cmd *cobra.Command) (*gridio.Session, error) {
	return gridio.NewSession(
		gridio.WithViper(a.cfg),
		gridio.WithLogLevel(a.cfg.GetInt(keyLogLevel)),
		gridio.WithLogOutput(cmd.ErrOrStderr()),
	)
}

// withFile opens path for reading in a fresh session and hands it to f.
func (a *app) withFile(cmd *cobra.Command, path string, f func(s *gridio.Session, d *gridio.Descriptor) error) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	d, err := s.OpenForReading(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return f(s, d)
}

// Package gridio opens grid files, validates and repairs their headers, and
// extracts hyper-rectangular subsets (timestep x variable x layer x row x
// column) from them.
//
// All state lives in a Session. Only one Session may be active in a process
// at a time, and a Session must not be used from more than one goroutine.
package gridio

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"sync/atomic"

	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/registry"
	"github.com/batchatco/go-native-gridio/internal"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix starts the environment variables a Session reads, as in
// GRIDIO_P_ALP or GRIDIO_UNIT_REPAIR.
const EnvPrefix = "GRIDIO"

// Configuration keys beside the projection parameters of header.ParamNames.
const (
	KeyKPaMax     = "KPA_MAX"
	KeyMbMax      = "MB_MAX"
	KeyUnitRepair = "UNIT_REPAIR"
)

var (
	ErrSessionActive = errors.New("a session is already active")
	ErrSessionClosed = errors.New("session is closed")
	ErrConfig        = errors.New("bad configuration value")
)

var active atomic.Bool

// Notices counts failures and repair warnings logged by a Session.
type Notices = internal.Notices

type options struct {
	capacity int
	level    int
	config   *viper.Viper
	noEnv    bool
	output   io.Writer
}

type Option func(*options)

// WithRegistryCapacity bounds the number of files open at once.
func WithRegistryCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithLogLevel sets the level of the session logger, from 0 (fatal only)
// to 3 (info).
func WithLogLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithViper reads overrides from v instead of a fresh environment-backed
// configuration.
func WithViper(v *viper.Viper) Option {
	return func(o *options) {
		o.config = v
	}
}

// WithoutEnvironment neither reads overrides from nor publishes logical
// names to the process environment.
func WithoutEnvironment() Option {
	return func(o *options) {
		o.noEnv = true
	}
}

// WithLogOutput sends log messages to w.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// Session owns the logical name registry, the logger and the header
// overrides shared by every file it opens.
type Session struct {
	registry  *registry.Registry
	logger    *internal.Logger
	notices   *internal.NoticeCounter
	overrides header.Overrides
	open      map[*Descriptor]struct{}
	closed    bool
}

// NewSession starts a session. It fails with ErrSessionActive while another
// session is open.
func NewSession(opts ...Option) (*Session, error) {
	o := options{level: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if !active.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}
	var regOpts []registry.Option
	if o.noEnv {
		regOpts = append(regOpts, registry.WithoutEnvironment())
	}
	s := &Session{
		registry: registry.New(o.capacity, regOpts...),
		logger:   internal.NewLogger(),
		notices:  internal.NewNoticeCounter(),
		open:     map[*Descriptor]struct{}{},
	}
	s.logger.AddHook(s.notices)
	if o.output != nil {
		s.logger.SetOutput(o.output)
	}
	if o.level >= 0 {
		s.logger.SetLogLevel(logLevel(o.level))
	}
	s.overrides.Logger = s.logger

	cfg := o.config
	if cfg == nil {
		cfg = viper.New()
		if !o.noEnv {
			cfg.SetEnvPrefix(EnvPrefix)
			cfg.AutomaticEnv()
		}
	}
	if err := s.configure(cfg); err != nil {
		active.Store(false)
		return nil, err
	}
	return s, nil
}

func logLevel(level int) internal.LogLevel {
	switch level {
	case 0:
		return internal.LevelFatal
	case 1:
		return internal.LevelError
	case 2:
		return internal.LevelWarn
	}
	return internal.LevelInfo
}

// configure reads the projection overrides and the unit repair settings.
func (s *Session) configure(cfg *viper.Viper) error {
	cfg.SetDefault(KeyKPaMax, header.DefaultKPaMax)
	cfg.SetDefault(KeyMbMax, header.DefaultMbMax)
	cfg.SetDefault(KeyUnitRepair, true)

	for _, name := range header.ParamNames {
		if !cfg.IsSet(name) {
			continue
		}
		v, err := cast.ToFloat64E(cfg.Get(name))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfig, name, err)
		}
		if s.overrides.Params == nil {
			s.overrides.Params = map[string]float64{}
		}
		s.overrides.Params[name] = v
	}
	var err error
	if s.overrides.KPaMax, err = cast.ToFloat64E(cfg.Get(KeyKPaMax)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfig, KeyKPaMax, err)
	}
	if s.overrides.MbMax, err = cast.ToFloat64E(cfg.Get(KeyMbMax)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfig, KeyMbMax, err)
	}
	if s.overrides.KPaMax >= s.overrides.MbMax {
		return fmt.Errorf("%w: %s %g not below %s %g", ErrConfig,
			KeyKPaMax, s.overrides.KPaMax, KeyMbMax, s.overrides.MbMax)
	}
	repair, err := cast.ToBoolE(cfg.Get(KeyUnitRepair))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfig, KeyUnitRepair, err)
	}
	s.overrides.DisableUnitRepair = !repair
	return nil
}

// Notices returns the failures and repair warnings logged so far.
func (s *Session) Notices() Notices {
	return s.notices.Snapshot()
}

// Overrides returns a copy of the header overrides in effect.
func (s *Session) Overrides() header.Overrides {
	o := s.overrides
	o.Params = maps.Clone(o.Params)
	return o
}

// Registry gives read access to the logical names in use.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Close closes every file still open and frees the session slot for a new
// session.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	var errs []error
	for d := range s.open {
		errs = append(errs, d.Close())
	}
	s.registry.Close()
	s.closed = true
	active.Store(false)
	return errors.Join(errs...)
}

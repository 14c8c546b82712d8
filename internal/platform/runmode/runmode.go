package runmode

import (
	"fmt"
	"os"
	"strings"
)

// Mode gates whether remote persistence is attempted at all. Restricted mode
// (offline/demo) routes every operation to the local cache; full mode tries
// the remote document store first.
type Mode string

const (
	ModeFull       Mode = "full"
	ModeRestricted Mode = "restricted"
)

func IsSupportedMode(mode Mode) bool {
	switch mode {
	case ModeFull, ModeRestricted:
		return true
	default:
		return false
	}
}

// Resolver reports the current mode. Implementations must re-read their
// source on every call (never cache at process start) so demo/test toggles
// take effect without a restart.
type Resolver interface {
	Resolve() Mode
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func() Mode

func (f ResolverFunc) Resolve() Mode { return f() }

type envResolver struct{}

// NewEnvResolver returns the environment-backed resolver. Resolution is
// tolerant: an unparseable SYNC_MODE resolves to full so a mid-flight env
// mutation cannot wedge the router; typos are rejected at boot by
// ResolveConfigFromEnv instead.
func NewEnvResolver() Resolver { return envResolver{} }

func (envResolver) Resolve() Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(os.Getenv("SYNC_MODE")))) {
	case ModeRestricted:
		return ModeRestricted
	case ModeFull:
		return ModeFull
	case "":
		if offlineFlagTruthy(os.Getenv("OFFLINE_MODE")) {
			return ModeRestricted
		}
		return ModeFull
	default:
		return ModeFull
	}
}

type Config struct {
	Mode                  Mode
	CompatibilityFallback bool
}

func (cfg Config) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode        ConfigErrorCode = "invalid_mode"
	ConfigErrorInvalidOfflineFlag ConfigErrorCode = "invalid_offline_flag"
)

type ConfigError struct {
	Code        ConfigErrorCode
	Mode        string
	OfflineFlag string
	Cause       error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid sync mode config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf(
			"invalid SYNC_MODE=%q (allowed: %q, %q)",
			e.Mode,
			ModeFull,
			ModeRestricted,
		)
	case ConfigErrorInvalidOfflineFlag:
		return fmt.Sprintf(
			"invalid OFFLINE_MODE=%q; expected a boolean-ish value like 1/0/true/false",
			e.OfflineFlag,
		)
	default:
		return "invalid sync mode config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveConfigFromEnv is the strict boot-time variant: it rejects
// unrecognized values so a typoed SYNC_MODE fails fast instead of silently
// running in full mode. When SYNC_MODE is unset, a truthy legacy
// OFFLINE_MODE flag selects restricted as a compatibility fallback.
func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{}

	rawMode := strings.TrimSpace(os.Getenv("SYNC_MODE"))
	mode := Mode(strings.ToLower(rawMode))

	switch mode {
	case "":
		rawOffline := strings.TrimSpace(os.Getenv("OFFLINE_MODE"))
		if rawOffline == "" {
			cfg.Mode = ModeFull
			return cfg, nil
		}
		if !parseableBool(rawOffline) {
			return cfg, &ConfigError{
				Code:        ConfigErrorInvalidOfflineFlag,
				OfflineFlag: rawOffline,
			}
		}
		if offlineFlagTruthy(rawOffline) {
			cfg.Mode = ModeRestricted
			cfg.CompatibilityFallback = true
		} else {
			cfg.Mode = ModeFull
		}
	case ModeFull:
		cfg.Mode = ModeFull
	case ModeRestricted:
		cfg.Mode = ModeRestricted
	default:
		return cfg, &ConfigError{
			Code: ConfigErrorInvalidMode,
			Mode: rawMode,
		}
	}

	return cfg, nil
}

func offlineFlagTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseableBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "y", "on", "0", "false", "f", "no", "n", "off":
		return true
	default:
		return false
	}
}

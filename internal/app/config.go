package app

import (
	"time"

	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/utils"
)

type Config struct {
	Port           string
	JWTSecretKey   string
	AccessTokenTTL time.Duration
	Sync           runmode.Config
	Environment    string
	Version        string
}

// LoadConfig reads process configuration. Sync mode parsing is strict here:
// a typoed SYNC_MODE fails boot instead of silently running in full mode.
func LoadConfig(log *logger.Logger) (Config, error) {
	syncCfg, err := runmode.ResolveConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	if syncCfg.CompatibilityFallback {
		log.Warn("SYNC_MODE unset; legacy OFFLINE_MODE selected restricted mode")
	}

	// Device tokens default to no expiry: an expiring token would orphan the
	// anonymous profile it names.
	ttlSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 0, log)

	return Config{
		Port:           utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:   utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL: time.Duration(ttlSeconds) * time.Second,
		Sync:           syncCfg,
		Environment:    utils.GetEnv("APP_ENV", "development", log),
		Version:        utils.GetEnv("APP_VERSION", "", log),
	}, nil
}

package app

import (
	"os"
	"strings"
	"time"

	"github.com/mx-space/notes/internal/config"
	"github.com/mx-space/notes/internal/pkg/nativelog"
	"go.uber.org/zap"
)

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return
	}
	time.Local = cfg.Location()
	_ = os.Setenv("TZ", tz)
	logger.Debug("timezone applied", zap.String("tz", tz))
}

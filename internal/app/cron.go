package app

import (
	"github.com/mx-space/notes/internal/config"
	pkgcron "github.com/mx-space/notes/internal/pkg/cron"
)

const (
	jobCleanupTokens = "cleanup_refresh_tokens"
	jobCleanupLinks  = "cleanup_public_links"
	jobCleanupShares = "cleanup_expired_shares"
)

// registerCronJobs registers the garbage collection jobs of the three ledgers.
func registerCronJobs(sched *pkgcron.Scheduler, cfg *config.AppConfig, svc services) {
	every := cfg.GC.Interval

	sched.Register(pkgcron.Job{
		Name:        jobCleanupTokens,
		Description: "Delete expired, revoked and over-age refresh tokens",
		Interval:    every,
		Fn:          svc.ledger.Cleanup,
	})

	sched.Register(pkgcron.Job{
		Name:        jobCleanupLinks,
		Description: "Delete public links that expired beyond the retention window",
		Interval:    every,
		Fn:          svc.links.Cleanup,
	})

	sched.Register(pkgcron.Job{
		Name:        jobCleanupShares,
		Description: "Delete shares that expired beyond the retention window",
		Interval:    every,
		Fn:          svc.shares.Cleanup,
	})
}

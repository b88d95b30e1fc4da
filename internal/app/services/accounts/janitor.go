package accounts

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/helphub/platform/pkg/logger"
)

// Janitor periodically purges expired login codes on a cron schedule.
type Janitor struct {
	svc  *Service
	cron *cron.Cron
	log  *logger.Logger
}

// NewJanitor schedules PurgeExpiredCodes on the given cron spec, for
// example "@every 10m". The schedule does not run until Start.
func NewJanitor(svc *Service, spec string, log *logger.Logger) (*Janitor, error) {
	if log == nil {
		log = logger.NewDefault("otp-janitor")
	}
	j := &Janitor{svc: svc, cron: cron.New(), log: log}
	if _, err := j.cron.AddFunc(spec, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) run() {
	if _, err := j.svc.PurgeExpiredCodes(context.Background()); err != nil {
		j.log.WithError(err).Warnf("expired code purge failed")
	}
}

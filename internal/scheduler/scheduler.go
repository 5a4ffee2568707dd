// Package scheduler runs the periodic lifecycle sweeps: renewals, reminders,
// health checks, dunning escalation and invitation expiry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mspforge/mspforge/internal/clock"
	dunningdomain "github.com/mspforge/mspforge/internal/dunning/domain"
	invitationdomain "github.com/mspforge/mspforge/internal/invitation/domain"
	"github.com/mspforge/mspforge/internal/locks"
	monitoringdomain "github.com/mspforge/mspforge/internal/monitoring/domain"
	obsmetrics "github.com/mspforge/mspforge/internal/observability/metrics"
	renewaldomain "github.com/mspforge/mspforge/internal/renewal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock

	RenewalSvc    renewaldomain.Service
	MonitoringSvc monitoringdomain.Service
	DunningSvc    dunningdomain.Service
	InvitationSvc invitationdomain.Service

	Locker *locks.Locker `optional:"true"`
	Config Config        `optional:"true"`
}

type Scheduler struct {
	log   *zap.Logger
	cfg   Config
	clock clock.Clock

	renewalSvc    renewaldomain.Service
	monitoringSvc monitoringdomain.Service
	dunningSvc    dunningdomain.Service
	invitationSvc invitationdomain.Service

	locker *locks.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RenewalSvc == nil || p.MonitoringSvc == nil || p.DunningSvc == nil || p.InvitationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		renewalSvc:    p.RenewalSvc,
		monitoringSvc: p.MonitoringSvc,
		dunningSvc:    p.DunningSvc,
		invitationSvc: p.InvitationSvc,
		locker:        p.Locker,
	}, nil
}

// runJob wraps a single sweep with a timeout, a cross-instance try-lock and
// metrics. A held lock means another instance is already on it; a timeout is
// soft and the next tick picks the work back up.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	schedMetrics := obsmetrics.Scheduler()
	log := s.log.With(zap.String("job", name))

	if s.locker != nil {
		key := "scheduler:job:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			log.Warn("job lock unavailable, running unlocked", zap.Error(err))
		} else if !ok {
			schedMetrics.IncJobError(name, obsmetrics.SchedulerJobReasonLockHeld)
			log.Debug("job lock held elsewhere, skipping")
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn("job lock release failed", zap.Error(err))
				}
			}()
		}
	}

	schedMetrics.IncJobRun(name)
	log.Debug("job started")

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		log.Debug("job finished", zap.Duration("took", time.Since(start)))
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	}

	schedMetrics.IncJobError(name, obsmetrics.ClassifyJobError(err))
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job in order. Per-job failures are joined,
// never aborting the remaining jobs.
func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"auto_renewals", s.AutoRenewalsJob},
		{"renewal_reminders", s.RenewalRemindersJob},
		{"health_checks", s.HealthChecksJob},
		{"dunning_escalation", s.DunningEscalationJob},
		{"invitation_expiry", s.InvitationExpiryJob},
	}

	var err error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		name, run := job.Name, job.Run
		err = errors.Join(err, s.runJob(parent, name, run))
	}
	return err
}

// RunForever ticks RunOnce on the configured interval until ctx ends.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty EnabledJobs list enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) AutoRenewalsJob(ctx context.Context) error {
	report, err := s.renewalSvc.ProcessAutoRenewals(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed("auto_renewals", "client_service", len(report.Processed))
	schedMetrics.AddBatchSkipped("auto_renewals", "ineligible", len(report.Skipped))
	schedMetrics.AddBatchSkipped("auto_renewals", "failed", len(report.Failed))
	if len(report.Failed) > 0 {
		s.log.Warn("auto renewals had failures", zap.Strings("service_ids", report.Failed))
	}
	return nil
}

func (s *Scheduler) RenewalRemindersJob(ctx context.Context) error {
	report, err := s.renewalSvc.SendRenewalReminders(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed("renewal_reminders", "client_service", report.Sent)
	schedMetrics.AddBatchSkipped("renewal_reminders", "deduped", report.Deduped)
	schedMetrics.AddBatchSkipped("renewal_reminders", "failed", report.Failed)
	return nil
}

func (s *Scheduler) HealthChecksJob(ctx context.Context) error {
	report, err := s.monitoringSvc.RunHealthChecks(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed("health_checks", "client_service", report.Checked)
	schedMetrics.AddBatchSkipped("health_checks", "failed", len(report.Failed))
	if report.Degraded > 0 {
		s.log.Info("health checks found degraded services", zap.Int("degraded", report.Degraded))
	}
	return nil
}

func (s *Scheduler) DunningEscalationJob(ctx context.Context) error {
	report, err := s.dunningSvc.EscalateOverdueInvoices(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed("dunning_escalation", "invoice", report.Created)
	schedMetrics.AddBatchSkipped("dunning_escalation", "current_level", report.Skipped)
	schedMetrics.AddBatchSkipped("dunning_escalation", "failed", len(report.Failed))
	return nil
}

func (s *Scheduler) InvitationExpiryJob(ctx context.Context) error {
	report, err := s.invitationSvc.ExpirePending(ctx)
	if err != nil {
		return err
	}
	obsmetrics.Scheduler().AddBatchProcessed("invitation_expiry", "invitation", report.Expired)
	return nil
}

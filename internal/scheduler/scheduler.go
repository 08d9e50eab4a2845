package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"StockHound/internal/audit"
	"StockHound/internal/notifier"
	"StockHound/internal/screener"
)

// DefaultTopN is how many rows a scheduled report shows.
const DefaultTopN = 10

// Sender delivers a text message. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Screener  *screener.Screener
	Validator *audit.PriceValidator
	Auditor   *audit.Auditor
	// Notifier may be nil; reports are then only logged.
	Notifier Sender
	Ctx      context.Context
	TopN     int

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, sc *screener.Screener, pv *audit.PriceValidator, au *audit.Auditor, n Sender, log zerolog.Logger) *Scheduler {
	cronLog := log.With().Str("component", "cron").Logger()
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&cronLog)))),
		Screener:  sc,
		Validator: pv,
		Auditor:   au,
		Notifier:  n,
		Ctx:       ctx,
		TopN:      DefaultTopN,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the screening and audit tasks.
func (s *Scheduler) RegisterAll(screenCron, auditCron string) error {
	if _, err := s.Cron.AddFunc(screenCron, s.screenTask); err != nil {
		return fmt.Errorf("register screen task: %w", err)
	}
	if _, err := s.Cron.AddFunc(auditCron, s.auditTask); err != nil {
		return fmt.Errorf("register audit task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunScreenNow executes the screening task immediately.
func (s *Scheduler) RunScreenNow() { s.screenTask() }

// RunAuditNow executes the audit task immediately.
func (s *Scheduler) RunAuditNow() { s.auditTask() }

// screenTask refreshes the whole universe and reports the best rows.
func (s *Scheduler) screenTask() {
	s.log.Info().Msg("running scheduled screen")
	results, err := s.Screener.Refresh(s.Ctx)
	var pe *screener.PassError
	switch {
	case errors.As(err, &pe):
		s.log.Warn().Int("failed", len(pe.Errors)).Err(err).Msg("screen finished with provider errors")
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled screen failed")
		s.trySend(fmt.Sprintf("❌ Scheduled screen failed: %v", err))
		return
	}
	s.trySend(notifier.FormatReport(results, 0, s.TopN))
}

// auditTask corrects drifted trade prices, then revalidates suspicious scores.
func (s *Scheduler) auditTask() {
	s.log.Info().Msg("running scheduled audit")
	msg, err := s.runAudit(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled audit failed")
		s.trySend(fmt.Sprintf("❌ Audit failed: %v", err))
		return
	}
	if msg != "" {
		s.trySend(msg)
	}
}

// runAudit returns a summary when something was corrected. It does not
// overlap a screening pass.
func (s *Scheduler) runAudit(ctx context.Context) (string, error) {
	var (
		fixed  int
		report audit.Report
	)
	task := func() error {
		if s.Validator != nil {
			n, err := s.Validator.ValidateAndCorrect(ctx)
			if err != nil {
				return fmt.Errorf("validate prices: %w", err)
			}
			fixed = n
		}
		var err error
		if report, err = s.Auditor.Revalidate(ctx); err != nil {
			return fmt.Errorf("revalidate scores: %w", err)
		}
		return nil
	}
	var err error
	if s.Screener != nil {
		err = s.Screener.Locked(task)
	} else {
		err = task()
	}
	if err != nil {
		return "", err
	}
	if fixed == 0 && len(report.Corrected) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("🔎 <b>Audit</b>\n\n")
	b.WriteString(fmt.Sprintf("Trade prices corrected: %d\n", fixed))
	b.WriteString(fmt.Sprintf("Scores checked: %d, corrected: %d", report.Checked, len(report.Corrected)))
	if len(report.Corrected) > 0 {
		b.WriteString(" (" + strings.Join(report.Corrected, ", ") + ")")
	}
	return b.String(), nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	budget, ok, err := notifier.ParseScreenCommand(command)
	if ok {
		if err != nil {
			return err.Error()
		}
		return s.screenReply(ctx, budget)
	}

	var name string
	if fields := strings.Fields(command); len(fields) > 0 {
		name, _, _ = strings.Cut(fields[0], "@")
	}
	switch name {
	case "/audit":
		msg, err := s.runAudit(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Audit failed: %v", err)
		}
		if msg == "" {
			return "🔎 Audit found nothing to correct."
		}
		return msg
	default:
		return "Commands:\n• /screen &lt;budget&gt;\n• /audit"
	}
}

func (s *Scheduler) screenReply(ctx context.Context, budget float64) string {
	results, err := s.Screener.Screen(ctx, budget)
	var pe *screener.PassError
	switch {
	case errors.Is(err, screener.ErrInvalidBudget):
		return "Please enter a valid budget."
	case errors.As(err, &pe):
		report := notifier.FormatReport(results, budget, s.TopN)
		return fmt.Sprintf("%s\n⚠️ %d symbol(s) could not be fetched", report, len(pe.Errors))
	case err != nil:
		s.log.Error().Err(err).Msg("screen command failed")
		return "❌ Screening failed, try again later."
	}
	return notifier.FormatReport(results, budget, s.TopN)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		s.log.Info().Msg(text)
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}

// Package metrics holds the domain counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPVerifications counts admin OTP checks by outcome
	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_otp_verifications_total",
		Help: "Admin OTP verification attempts by result.",
	}, []string{"result"})

	// LoginAttempts counts logins by principal kind and outcome
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_login_attempts_total",
		Help: "Login attempts by principal kind and status.",
	}, []string{"kind", "status"}) // status: success, failed, locked, otp_required

	// RefreshTokens counts refresh token lifecycle events
	RefreshTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_refresh_tokens_total",
		Help: "Refresh token events (issued, refreshed, rejected, revoked).",
	}, []string{"event"})

	// RemindersDispatched counts deadline reminder deliveries by channel and outcome
	RemindersDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_deadline_reminders_total",
		Help: "Deadline reminder deliveries by channel and result.",
	}, []string{"channel", "result"})

	// SchedulerRuns counts scheduler ticks by job and outcome
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_scheduler_runs_total",
		Help: "Scheduler job runs by job and result (ok, error, skipped).",
	}, []string{"job", "result"})

	// MailSent counts outbound mail by transport and outcome
	MailSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webnest_mail_sent_total",
		Help: "Outbound mail by transport and result.",
	}, []string{"transport", "result"})

	// PaymentsCompleted counts projects marked paid by the Stripe webhook
	PaymentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webnest_payments_completed_total",
		Help: "Checkout sessions that marked a project paid.",
	})
)

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/logging"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
	templates "github.com/webnest/webnest-api/templates/html"
)

func logger() *zap.SugaredLogger { return logging.New("scheduler") }

const (
	reminderLock    = "deadline_reminders"
	reminderLockTTL = 30 * time.Minute
	cleanupLock     = "refresh_token_cleanup"
	cleanupLockTTL  = 10 * time.Minute
	jobTimeout      = 5 * time.Minute
)

// ReminderOffsets are the lead times before a deadline at which reminders fire
var ReminderOffsets = []struct {
	Type   string
	Before time.Duration
}{
	{models.Reminder7Days, 7 * 24 * time.Hour},
	{models.Reminder3Days, 3 * 24 * time.Hour},
	{models.Reminder1Day, 24 * time.Hour},
	{models.Reminder2Hours, 2 * time.Hour},
}

// Notifier stores an in-app notification and pushes it to live sockets
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// TokenCleaner purges dead refresh tokens
type TokenCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	DeadlineDB databases.DeadlineDatabase
	DevDB      databases.DeveloperDatabase
	LockDB     databases.SchedulerLockDatabase
	Notifier   Notifier
	Mailer     email.Sender
	Tokens     TokenCleaner
	Now        func() time.Time
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	deadlineDB databases.DeadlineDatabase,
	devDB databases.DeveloperDatabase,
	lockDB databases.SchedulerLockDatabase,
	notifier Notifier,
	mailer email.Sender,
	tokens TokenCleaner,
) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = "instance-" + uuid.NewString()
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		DeadlineDB: deadlineDB,
		DevDB:      devDB,
		LockDB:     lockDB,
		Notifier:   notifier,
		Mailer:     mailer,
		Tokens:     tokens,
		Now:        func() time.Time { return time.Now().UTC() },
		instanceID: instanceID,
	}
}

// BuildReminders returns the reminders for a deadline created at now. Offsets that
// would already be in the past are left out.
func BuildReminders(deadline, now time.Time) []models.Reminder {
	reminders := make([]models.Reminder, 0, len(ReminderOffsets))
	for _, o := range ReminderOffsets {
		at := deadline.Add(-o.Before)
		if !at.After(now) {
			continue
		}
		reminders = append(reminders, models.Reminder{
			ID:           primitive.NewObjectID(),
			ReminderType: o.Type,
			ReminderDate: at.UTC(),
		})
	}
	return reminders
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc("0 * * * *", s.runDeadlineReminders); err != nil {
		logger().Errorw("failed to register deadline reminder job", "error", err)
	}
	if _, err := s.cron.AddFunc("0 4 * * *", s.runTokenCleanup); err != nil {
		logger().Errorw("failed to register refresh token cleanup job", "error", err)
	}

	s.cron.Start()
	logger().Infow("scheduler started", "instance", s.instanceID)
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger().Info("scheduler stopped")
}

func (s *Scheduler) runDeadlineReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.ProcessDeadlineReminders(ctx); err != nil {
		logger().Errorw("deadline reminder job failed", "error", err)
	}
}

func (s *Scheduler) runTokenCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.CleanupRefreshTokens(ctx); err != nil {
		logger().Errorw("refresh token cleanup failed", "error", err)
	}
}

// withLock runs fn only when this instance holds the named lease. It reports whether
// fn ran.
func (s *Scheduler) withLock(ctx context.Context, name string, ttl time.Duration, fn func() error) (bool, error) {
	acquired, err := s.LockDB.TryAcquireLock(ctx, name, s.instanceID, ttl)
	if err != nil {
		metrics.SchedulerRuns.WithLabelValues(name, "error").Inc()
		return false, fmt.Errorf("acquire %s lock: %w", name, err)
	}
	if !acquired {
		logger().Debugw("job already running on another instance, skipping", "job", name)
		metrics.SchedulerRuns.WithLabelValues(name, "skipped").Inc()
		return false, nil
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(context.Background(), name, s.instanceID); err != nil {
			logger().Warnw("failed to release lock", "job", name, "error", err)
		}
	}()

	if err := fn(); err != nil {
		metrics.SchedulerRuns.WithLabelValues(name, "error").Inc()
		return true, err
	}
	metrics.SchedulerRuns.WithLabelValues(name, "ok").Inc()
	return true, nil
}

// ProcessDeadlineReminders delivers every due reminder on both channels. Each channel
// is stamped as soon as it succeeds so a failed channel alone is retried on the next
// tick. It returns the number of reminders fully sent in this run.
func (s *Scheduler) ProcessDeadlineReminders(ctx context.Context) (int, error) {
	completed := 0
	_, err := s.withLock(ctx, reminderLock, reminderLockTTL, func() error {
		now := s.Now()
		deadlines, err := s.DeadlineDB.Find(ctx, bson.M{
			"isCompleted":  false,
			"deadlineDate": bson.M{"$gt": now},
			"reminders": bson.M{"$elemMatch": bson.M{
				"sent":         false,
				"reminderDate": bson.M{"$lte": now},
			}},
		})
		if err != nil {
			return fmt.Errorf("find due deadlines: %w", err)
		}

		logger().Infow("processing deadline reminders", "instance", s.instanceID, "deadlines", len(deadlines))
		for _, d := range deadlines {
			completed += s.processDeadline(ctx, d, now)
		}
		logger().Infow("deadline reminders complete", "sent", completed)
		return nil
	})
	return completed, err
}

func (s *Scheduler) processDeadline(ctx context.Context, d models.ProjectDeadline, now time.Time) int {
	var dev *models.Developer
	lookedUp, assigneeGone := false, false
	sent := 0
	for _, r := range d.Reminders {
		if !r.Due(now) {
			continue
		}
		filter := bson.M{"_id": d.ID, "reminders._id": r.ID}
		notified := r.NotificationSentAt != nil
		emailed := r.EmailSentAt != nil

		if !notified {
			if err := s.sendReminderNotification(ctx, d, r, now); err != nil {
				logger().Errorw("reminder notification failed", "deadlineId", d.ID.Hex(), "reminder", r.ReminderType, "error", err)
				metrics.RemindersDispatched.WithLabelValues("notification", "error").Inc()
			} else if err := s.stamp(ctx, filter, "reminders.$.notificationSentAt", now); err != nil {
				logger().Errorw("failed to stamp reminder notification", "deadlineId", d.ID.Hex(), "error", err)
			} else {
				metrics.RemindersDispatched.WithLabelValues("notification", "ok").Inc()
				notified = true
			}
		}

		if !emailed && !lookedUp {
			lookedUp = true
			found, err := s.DevDB.FindOne(ctx, bson.M{"_id": d.AssigneeID})
			switch {
			case errors.Is(err, databases.ErrNotFound):
				logger().Warnw("reminder assignee no longer exists, skipping email", "deadlineId", d.ID.Hex(), "assigneeId", d.AssigneeID.Hex())
				assigneeGone = true
			case err != nil:
				logger().Errorw("failed to load reminder assignee", "deadlineId", d.ID.Hex(), "assigneeId", d.AssigneeID.Hex(), "error", err)
			default:
				dev = found
			}
		}

		if !emailed && assigneeGone {
			// nobody to mail; stamp it so the channel is not retried every tick
			if err := s.stamp(ctx, filter, "reminders.$.emailSentAt", now); err != nil {
				logger().Errorw("failed to stamp skipped reminder email", "deadlineId", d.ID.Hex(), "error", err)
			} else {
				metrics.RemindersDispatched.WithLabelValues("email", "skipped").Inc()
				emailed = true
			}
		}

		if !emailed {
			if dev != nil {
				if err := s.sendReminderEmail(ctx, dev, d, now); err != nil {
					logger().Errorw("reminder email failed", "deadlineId", d.ID.Hex(), "reminder", r.ReminderType, "error", err)
					metrics.RemindersDispatched.WithLabelValues("email", "error").Inc()
				} else if err := s.stamp(ctx, filter, "reminders.$.emailSentAt", now); err != nil {
					logger().Errorw("failed to stamp reminder email", "deadlineId", d.ID.Hex(), "error", err)
				} else {
					metrics.RemindersDispatched.WithLabelValues("email", "ok").Inc()
					emailed = true
				}
			}
		}

		if notified && emailed {
			if _, err := s.DeadlineDB.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
				"reminders.$.sent":   true,
				"reminders.$.sentAt": now,
			}}); err != nil {
				logger().Errorw("failed to mark reminder sent", "deadlineId", d.ID.Hex(), "error", err)
				continue
			}
			sent++
		}
	}
	return sent
}

func (s *Scheduler) stamp(ctx context.Context, filter bson.M, field string, now time.Time) error {
	_, err := s.DeadlineDB.UpdateOne(ctx, filter, bson.M{"$set": bson.M{field: now}})
	return err
}

func (s *Scheduler) sendReminderNotification(ctx context.Context, d models.ProjectDeadline, r models.Reminder, now time.Time) error {
	_, err := s.Notifier.Notify(ctx, models.Notification{
		RecipientID:   d.AssigneeID,
		RecipientType: models.KindDeveloper,
		Type:          models.NotificationDeadlineReminder,
		Title:         "Deadline approaching: " + d.Title,
		Message:       fmt.Sprintf("%q is due in %s.", d.Title, TimeLeft(d.DeadlineDate.Sub(now))),
		Link:          "/developer/projects/" + d.ProjectID.Hex(),
	})
	return err
}

func (s *Scheduler) sendReminderEmail(ctx context.Context, dev *models.Developer, d models.ProjectDeadline, now time.Time) error {
	left := TimeLeft(d.DeadlineDate.Sub(now))
	return s.Mailer.Send(ctx, email.Message{
		ToEmail: dev.Email,
		ToName:  dev.Name,
		Subject: "Reminder: " + d.Title + " is due in " + left,
		HTML:    templates.RenderDeadlineReminderEmail(dev.Name, d.Title, left, d.DeadlineDate),
		Text:    fmt.Sprintf("Hi %s, %q is due in %s (%s UTC).", dev.Name, d.Title, left, d.DeadlineDate.UTC().Format("Jan 2, 2006 15:04")),
	})
}

// CleanupRefreshTokens removes expired and revoked refresh tokens
func (s *Scheduler) CleanupRefreshTokens(ctx context.Context) (int64, error) {
	var removed int64
	_, err := s.withLock(ctx, cleanupLock, cleanupLockTTL, func() error {
		n, err := s.Tokens.Cleanup(ctx)
		if err != nil {
			return err
		}
		removed = n
		logger().Infow("refresh token cleanup complete", "removed", n)
		return nil
	})
	return removed, err
}

// TimeLeft renders a duration the way reminder copy reads it
func TimeLeft(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d.Round(time.Hour).Hours())/24)
	case d >= 24*time.Hour:
		return "1 day"
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Round(time.Hour).Hours()))
	case d >= time.Hour:
		return "1 hour"
	case d > 0:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return "no time"
}

// Package digest sends a scheduled analytics summary to the staff chat.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"incidenbot/backend/internal/analytics"
	"incidenbot/backend/internal/livefeed"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

// Sender delivers the rendered digest (the Telegram staff notifier).
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// SnapshotSource provides the current incident collection.
type SnapshotSource interface {
	Latest() *livefeed.Snapshot
}

// Labels localizes the digest.
type Labels interface {
	GetString(lang, key string) string
	DayLabeler(lang string) func(time.Time) string
}

// Job computes the dashboard stats and sends them as one message. Without
// a Sender the digest is only logged.
type Job struct {
	Source  SnapshotSource
	Sender  Sender
	Labels  Labels
	Lang    string
	Now     func() time.Time
	Timeout time.Duration
}

func (j *Job) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Render formats stats. A nil stats renders the "no incidents" line.
func (j *Job) Render(stats *analytics.Stats) string {
	t := func(key string) string {
		return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, j.Labels.GetString(j.Lang, key))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *%s*\n", t("digest_title"))
	if stats == nil {
		sb.WriteString(t("digest_empty"))
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s: %d\n", t("digest_total"), stats.Total)
	fmt.Fprintf(&sb, "%s: %d%%\n", t("digest_completion"), stats.CompletionRate)
	fmt.Fprintf(&sb, "%s: %s\n", t("digest_avg_resolution"), stats.AvgResolutionTime)
	if stats.HighImpact != nil {
		fmt.Fprintf(&sb, "%s: %s (%.1f/5)\n", t("digest_high_impact"),
			t("category_"+string(stats.HighImpact.Name)), stats.HighImpact.AvgUrgency)
	}
	sb.WriteString("\n")
	for _, c := range stats.Categories {
		fmt.Fprintf(&sb, "• %s: %d (%d%%)\n", t("category_"+string(c.Name)), c.Count, c.Percentage)
	}

	today := stats.DailyCounts[len(stats.DailyCounts)-1]
	fmt.Fprintf(&sb, "\n%s: %d", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, today.Label), today.Count)
	return sb.String()
}

// Run builds and sends one digest.
func (j *Job) Run(ctx context.Context) error {
	var stats *analytics.Stats
	if snap := j.Source.Latest(); snap != nil {
		stats = analytics.ComputeStats(snap.Incidents, j.now(), j.Labels.DayLabeler(j.Lang))
	}
	text := j.Render(stats)

	if j.Sender == nil {
		log.Printf("INFO: Daily digest (no Telegram chat configured):\n%s", text)
		return nil
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if err := j.Sender.SendText(ctx, text); err != nil {
		log.Printf("ERROR: Failed to send daily digest: %v", err)
		return err
	}
	log.Printf("INFO: Daily digest sent")
	return nil
}

// Schedule registers the job on a new cron scheduler using a standard
// five-field spec. The caller starts and stops the scheduler.
func Schedule(spec string, job *Job) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_ = job.Run(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", spec, err)
	}
	return c, nil
}

package templates

import (
	"fmt"
	"html"
	"time"
)

const reminderAccent = "linear-gradient(135deg, #f59e0b 0%, #ef4444 100%)"

// RenderAssignmentEmail generates the HTML sent to a developer when a project is assigned
func RenderAssignmentEmail(developerName, projectTitle, notes, dashboardURL string) string {
	notesBlock := ""
	if notes != "" {
		notesBlock = fmt.Sprintf(`<div class="highlight-box"><strong>Notes from the team</strong><br>%s</div>`, html.EscapeString(notes))
	}
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
      <p>You have been assigned to <strong>%s</strong>. Please accept or reject the assignment from your dashboard.</p>
      %s
      <a href="%s" class="cta-button">Open dashboard</a>`,
		html.EscapeString(developerName), html.EscapeString(projectTitle), notesBlock, html.EscapeString(dashboardURL))

	return layout("New project assignment", defaultAccent, "New project assigned", body)
}

// RenderDeadlineReminderEmail generates the HTML for a deadline reminder
func RenderDeadlineReminderEmail(developerName, deadlineTitle, timeLeft string, deadline time.Time) string {
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
      <p>This is a reminder that <strong>%s</strong> is due in <strong>%s</strong>.</p>
      <div class="highlight-box">Due date: %s UTC</div>
      <p>If you expect to miss the deadline, let the team know as soon as possible.</p>`,
		html.EscapeString(developerName), html.EscapeString(deadlineTitle), html.EscapeString(timeLeft),
		deadline.UTC().Format("Mon, 02 Jan 2006 15:04"))

	return layout("Deadline reminder", reminderAccent, "Upcoming deadline", body)
}

// RenderPaymentReceivedEmail generates the HTML receipt sent to a client after checkout
func RenderPaymentReceivedEmail(clientName, projectTitle string, amount float64) string {
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
      <p>We received your payment of <strong>$%.2f</strong> for <strong>%s</strong>.</p>
      <p>Our team will assign a developer shortly. You can follow progress from your dashboard.</p>`,
		html.EscapeString(clientName), amount, html.EscapeString(projectTitle))

	return layout("Payment received", defaultAccent, "Thank you!", body)
}

package templates

import (
	"fmt"
	"html"
)

// RenderOTPEmail generates the HTML for the admin verification code email
func RenderOTPEmail(name, code string, validMinutes int) string {
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
      <p>Use the code below to verify your WebNest admin account.</p>
      <div class="code">%s</div>
      <p>The code expires in <strong>%d minutes</strong>. After five wrong attempts the account is locked and an owner has to unlock it.</p>
      <p style="color: #6b7280; font-size: 13px;">If you did not try to sign in, you can ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(code), validMinutes)

	return layout("Your WebNest verification code", defaultAccent, "Verify your account", body)
}

// RenderPasswordResetEmail generates the HTML for the admin password reset email
func RenderPasswordResetEmail(name, resetURL string, validMinutes int) string {
	safeURL := html.EscapeString(resetURL)
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
      <p>We received a request to reset the password of your WebNest admin account.</p>
      <a href="%s" class="cta-button">Reset password</a>
      <p style="margin-top: 30px;">This link is valid for %d minutes and can be used once.</p>
      <p style="color: #6b7280; font-size: 13px;">If the button does not work, paste this address into your browser:<br>%s</p>`,
		html.EscapeString(name), safeURL, validMinutes, safeURL)

	return layout("Reset your WebNest password", defaultAccent, "Password reset", body)
}

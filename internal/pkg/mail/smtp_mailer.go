package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/BizCoreHQ/bizcore/internal/pkg/env"
)

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendTrialExpiryReminder notifies a tenant contact that their trial ends soon.
func SendTrialExpiryReminder(to, tenantName string, daysLeft int) error {
	subject := fmt.Sprintf("Your %s trial ends in %d day(s)", tenantName, daysLeft)
	body := fmt.Sprintf(
		"<p>Hello,</p><p>The trial for <strong>%s</strong> ends in %d day(s). "+
			"Pick a plan to keep your workspace active.</p>",
		tenantName, daysLeft,
	)
	return SendMail(to, subject, body)
}

// SendBillingReminder notifies a tenant contact about an upcoming billing date.
func SendBillingReminder(to, tenantName string, daysLeft int) error {
	subject := fmt.Sprintf("Upcoming payment for %s", tenantName)
	body := fmt.Sprintf(
		"<p>Hello,</p><p>The next payment for <strong>%s</strong> is due in %d day(s).</p>",
		tenantName, daysLeft,
	)
	return SendMail(to, subject, body)
}

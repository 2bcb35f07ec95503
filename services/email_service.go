package services

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"buildcost/models"

	"golang.org/x/net/html"
)

// convertHTMLToText converts HTML content to plain text for email sending
func convertHTMLToText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// If parsing fails, return the original content
		return htmlContent
	}

	var text strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
		case html.ElementNode:
			// Add line breaks for block elements
			switch n.Data {
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6":
				text.WriteString("\n")
			case "li":
				text.WriteString("- ")
			case "table", "tr":
				text.WriteString("\n")
			case "td", "th":
				text.WriteString(" | ")
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			extractText(child)
		}
	}

	extractText(doc)

	result := text.String()
	result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	result = strings.TrimSpace(result)

	return result
}

// EmailService sends operational mail over SMTP.
type EmailService struct {
	host     string
	port     string
	from     string
	username string
	password string
	devInbox string
}

// NewEmailService reads SMTP settings from the environment.
func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		from:     os.Getenv("SMTP_FROM"),
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		devInbox: os.Getenv("DEV_ALERT_EMAIL"),
	}
}

// SendDevAlert mails an operational notification to the developer inbox. It
// is fire-and-forget from the caller's point of view; a mail failure is
// logged by the caller, never surfaced to the end user.
func (es *EmailService) SendDevAlert(alert models.DevAlert) error {
	if es.devInbox == "" {
		return fmt.Errorf("failed to send dev alert: DEV_ALERT_EMAIL is not configured")
	}
	return es.sendEmail(es.devInbox, alert.Subject, convertHTMLToText(alert.Text))
}

// SendProjectCompletedEmail notifies the customer that their project summary
// is ready.
func (es *EmailService) SendProjectCompletedEmail(user models.User, project models.Project, summary models.ProjectSummary) error {
	subject := fmt.Sprintf("Project %s completed", project.Name)
	body := strings.Join([]string{
		"Hello " + user.Name + ",",
		"",
		fmt.Sprintf("Your project %q has been marked completed.", project.Name),
		fmt.Sprintf("Total labor time: %.2f hours", summary.ElementTime),
		fmt.Sprintf("Material total: %.2f", summary.MaterialPrice),
	}, "\r\n")
	return es.sendEmail(user.Email, subject, body)
}

// sendEmail sends an email using SMTP
func (es *EmailService) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", es.username, es.password, es.host)

	headers := []string{
		"From: " + es.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}
	msg := []byte(strings.Join(headers, "\r\n") + "\r\n")

	err := smtp.SendMail(es.host+":"+es.port, auth, es.from, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

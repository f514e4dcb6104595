package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"coachfit/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
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

// SendPaymentLink delivers the public payment link of an invitation to the
// invited student. Best-effort: callers log failures and continue.
func SendPaymentLink(to, studentName, coachName, link string) error {
	subject := fmt.Sprintf("Convite de pagamento - %s", coachName)
	body := fmt.Sprintf(
		"<p>Olá %s,</p>"+
			"<p>%s convidou você para ativar seu acompanhamento. "+
			"Use o link abaixo para concluir o pagamento:</p>"+
			"<p><a href=\"%s\">%s</a></p>"+
			"<p>O link expira automaticamente e só pode ser usado uma vez.</p>",
		studentName, coachName, link, link,
	)
	return SendMail(to, subject, body)
}

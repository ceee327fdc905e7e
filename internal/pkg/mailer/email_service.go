// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendTurnFailureAlert(sessionID, reason, detail string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	alertEmail  string
}

func NewEmailService(host string, port int, username, password, senderEmail, alertEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)
	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		alertEmail:  alertEmail,
	}
}

// SendTurnFailureAlert notifies the ops inbox that a conversation turn ended
// in a terminal failure. A missing alert address disables alerts quietly.
func (s *emailService) SendTurnFailureAlert(sessionID, reason, detail string) error {
	if s.alertEmail == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", s.alertEmail)
	m.SetHeader("Subject", fmt.Sprintf("Workflow turn failed (%s)", reason))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Turn Failure</h2>
			<p><b>Session:</b> %s</p>
			<p><b>Reason:</b> %s</p>
			<p><b>Detail:</b></p>
			<pre style="background: #f4f4f4; padding: 10px;">%s</pre>
		</div>
	`, sessionID, reason, detail)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send failure alert for session %s: %v\n", sessionID, err)
		return err
	}

	fmt.Printf("[MAILER] Failure alert sent for session %s\n", sessionID)
	return nil
}

package invites

import (
	"os"
	"strconv"

	"github.com/covestack/covestack/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Mailer sends invite mail over SMTP. Without SMTP_* configuration it runs
// in dev mode and logs the invite link instead of sending.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailerFromEnv() *Mailer {
	from := os.Getenv("FROM_EMAIL")
	if from == "" {
		from = "Cove <no-reply@example.com>"
	}

	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	if host == "" || portStr == "" || user == "" || pass == "" {
		logger.Sugar.Info("SMTP not configured; invite mail will be logged instead of sent")
		return &Mailer{from: from}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Sugar.Warnf("Invalid SMTP_PORT %q; invite mail will be logged instead of sent", portStr)
		return &Mailer{from: from}
	}

	return &Mailer{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

func (m *Mailer) SendInvite(email, name, link string) error {
	if m.dialer == nil {
		logger.Sugar.Infof("Invite for %s: %s", email, link)
		return nil
	}

	to := email
	if name != "" {
		to = name + " <" + email + ">"
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "You're invited to a Cove")
	msg.SetBody("text/plain",
		"You've been invited to a Cove.\n\n"+
			"Open: "+link+"\n\n"+
			"If you didn't expect this, you can ignore the message.")
	msg.AddAlternative("text/html",
		"<p>You've been invited to a Cove.</p>"+
			`<p><a href="`+link+`">Open invite</a></p>`+
			"<p>If you didn't expect this, you can ignore the message.</p>")

	return m.dialer.DialAndSend(msg)
}

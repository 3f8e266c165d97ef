package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spachava753/stayconnected/people"
	"github.com/spachava753/stayconnected/plans"
)

// Reminder builds the reminder for plan p with contact, with times shown in
// loc. A nil loc means UTC.
func Reminder(to string, p plans.Plan, contact people.Person, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	name := contact.DisplayName()
	if name == "" {
		name = p.ContactKey
	}
	start := p.StartsAt.In(loc)

	var b strings.Builder
	fmt.Fprintf(&b, "You have time set aside with %s.\n\n", name)
	fmt.Fprintf(&b, "When: %s to %s\n", start.Format("Mon Jan 2, 2006 3:04 PM MST"), p.EndsAt().In(loc).Format("3:04 PM"))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(p.Duration))
	if p.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", p.Location)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Notes)
	}

	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Reminder: %s on %s", name, start.Format("Mon Jan 2 at 3:04 PM")),
		Body:    b.String(),
	}
}

// SendReminder mails the reminder for p to the account's own address.
func (m *Mailer) SendReminder(ctx context.Context, p plans.Plan, contact people.Person, loc *time.Location) (string, error) {
	creds, err := m.creds()
	if err != nil {
		return "", err
	}
	return m.Send(ctx, Reminder(creds.Address, p, contact, loc))
}

func formatDuration(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%d min", m)
	case m == 0 && h == 1:
		return "1 hour"
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%dh %02dm", h, m)
	}
}

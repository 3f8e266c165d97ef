// Package mail connects stayconnected to an email account.
//
// It has two halves:
//
//   - Source implements people.Source over IMAP. Fetch reads the envelopes
//     of the newest messages in one mailbox, counts every From, To and Cc
//     address other than the account's own, and returns the most frequent
//     correspondents as drafts. Automated senders such as no-reply
//     addresses are skipped.
//   - Mailer sends plain-text mail over SMTP with implicit TLS and PLAIN
//     auth. SendReminder mails a plan reminder to the account itself.
//
// # Credentials
//
// The account address and app password come from STAYCONNECTED_MAIL_ADDRESS
// and STAYCONNECTED_MAIL_PASSWORD. They are never read from the config file.
// Missing or rejected credentials make Source calls fail with an error
// matching people.ErrPermissionDenied.
//
// # Composition Examples
//
// 1) Import frequent correspondents:
//
//	src := mail.NewSource(mail.Config{})
//	out, err := book.ImportFrom(ctx, src, people.ImportInput{
//		UserID:   uid,
//		Existing: people.Keys(current),
//	})
//
// 2) Remind yourself about a plan:
//
//	m := mail.NewMailer(mail.Config{})
//	_, err := m.SendReminder(ctx, plan, person, time.Local)
package mail

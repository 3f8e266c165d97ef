package mail_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spachava753/stayconnected/mail"
	"github.com/spachava753/stayconnected/people"
	"github.com/spachava753/stayconnected/plans"
)

func composeImportCorrespondents(ctx context.Context, book *people.Book, uid string) error {
	current, err := book.List(ctx, uid)
	if err != nil {
		return err
	}

	src := mail.NewSource(mail.Config{Mailbox: "INBOX"})
	out, err := book.ImportFrom(ctx, src, people.ImportInput{
		UserID:   uid,
		Existing: people.Keys(current),
	})
	if errors.Is(err, people.ErrPermissionDenied) {
		fmt.Printf("set %s and %s, then retry\n", mail.EnvAddress, mail.EnvPassword)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("added %d, skipped %d\n", out.Added, out.Skipped)
	return nil
}

func composeRemindUpcoming(ctx context.Context, planner *plans.Planner, book *people.Book, uid string) error {
	upcoming, err := planner.Upcoming(ctx, uid)
	if err != nil || len(upcoming) == 0 {
		return err
	}

	next := upcoming[0]
	person, err := book.Get(ctx, uid, next.ContactKey)
	if err != nil {
		return err
	}
	_, err = mail.NewMailer(mail.Config{}).SendReminder(ctx, next, person, time.Local)
	return err
}

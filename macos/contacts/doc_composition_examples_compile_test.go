package contacts_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/spachava753/stayconnected/identity"
	"github.com/spachava753/stayconnected/macos/contacts"
	"github.com/spachava753/stayconnected/people"
)

func composeImportAddressBook(ctx context.Context, book *people.Book, uid string) error {
	src := contacts.New()
	current, err := book.List(ctx, uid)
	if err != nil {
		return err
	}

	out, err := book.ImportFrom(ctx, src, people.ImportInput{
		UserID:   uid,
		Existing: people.Keys(current),
	})
	if errors.Is(err, people.ErrPermissionDenied) {
		fmt.Println("allow Contacts access in System Settings, then retry")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("added %d, skipped %d\n", out.Added, out.Skipped)
	return nil
}

func composePreviewKeys(ctx context.Context) ([]string, error) {
	src := contacts.New()
	status, err := src.AuthorizationStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status != contacts.AuthStatusAuthorized {
		return nil, nil
	}

	drafts, err := src.Fetch(ctx, 20)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(drafts))
	for _, d := range drafts {
		key, err := identity.Resolve(identity.Candidate{Name: d.Name, Email: d.Email, Phone: d.Phone})
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

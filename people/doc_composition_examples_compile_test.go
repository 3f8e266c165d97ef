package people_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/spachava753/stayconnected/people"
)

func composeImportFromSource(ctx context.Context, store people.Store, source people.Source, uid string) error {
	book := people.New(store)
	current, err := book.List(ctx, uid)
	if err != nil {
		return err
	}

	out, err := book.ImportFrom(ctx, source, people.ImportInput{
		UserID:   uid,
		Existing: people.Keys(current),
	})
	if errors.Is(err, people.ErrPermissionDenied) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("added %d, skipped %d\n", out.Added, out.Skipped)
	return out.Err()
}

func composeEditAfterImport(ctx context.Context, book *people.Book, uid string) error {
	rel := people.RelationshipCloseFriend
	notes := "Coffee every other Friday"
	_, err := book.Update(ctx, uid, "email:priya@acme.example", people.PersonPatch{
		Relationship: &rel,
		Notes:        &notes,
	})
	return err
}

// Package people stores personal contacts and reconciles imported records
// against them.
//
// Every person is stored under the key produced by the identity package, so
// importing the same real-world person twice converges on one record.
//
// The package exposes a Book over a caller-supplied Store:
//
//   - Import: partition drafts into new, duplicate and invalid records against
//     a caller-owned KeySet, then write only the new ones.
//   - ImportFrom: request access to a Source, fetch drafts and Import them.
//   - Upsert: create or merge one person.
//   - Update: patch nickname, relationship or notes.
//   - Get, List, Delete: read and remove.
//
// # Import Semantics
//
// Keys are partitioned synchronously before any write. New records are then
// written concurrently with Store.Create, which never overwrites an existing
// record. Import reports a per-record ImportResult plus Added, Skipped,
// Invalid and Failed counts, so callers can tell partial success from total
// failure. Write failures are not retried. ImportOutput.Err joins them for
// surfaces that only show one message.
//
// # Errors
//
// All errors returned by Book are *Error values or wrap one. Use errors.Is
// with ErrInvalidInput, ErrPermissionDenied, ErrPersistence or ErrNotFound.
//
// # Composition Examples
//
// 1) Import from a device source against the latest snapshot:
//
//	book := people.New(store, people.WithLogger(logger))
//	current, err := book.List(ctx, uid)
//	if err != nil {
//		// handle
//	}
//	out, err := book.ImportFrom(ctx, source, people.ImportInput{
//		UserID:   uid,
//		Existing: people.Keys(current),
//	})
//	if errors.Is(err, people.ErrPermissionDenied) {
//		// offer a retry
//	}
//	fmt.Printf("added %d, skipped %d\n", out.Added, out.Skipped)
//
// 2) Edit a person after import:
//
//	rel := people.RelationshipCloseFriend
//	_, err = book.Update(ctx, uid, "email:priya@acme.example", people.PersonPatch{
//		Relationship: &rel,
//	})
package people

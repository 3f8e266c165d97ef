// Package contacts reads the macOS address book as an import source.
//
// Source implements people.Source on top of the Contacts AppleScript
// dictionary, driven through osascript. Each contact becomes a people.Draft
// carrying its first phone number, first email address, nickname and
// birthday. Birthdays are formatted YYYY-MM-DD; ones saved without a year
// use 0000.
//
// # Authorization
//
// AuthorizationStatus probes access by talking to Contacts, which shows the
// system prompt the first time. A refusal (AppleScript error -1743) is
// reported as AuthStatusDenied, and RequestAccess and Fetch then return an
// error matching people.ErrPermissionDenied. The user can grant access in
// System Settings and the import can be retried.
//
// # Platform
//
// Non-Darwin builds return ErrUnsupportedPlatform from every call.
//
// # Composition Examples
//
// 1) Import the address book for the signed-in user:
//
//	src := contacts.New(contacts.WithLogger(logger))
//	current, err := book.List(ctx, uid)
//	if err != nil {
//		// handle
//	}
//	out, err := book.ImportFrom(ctx, src, people.ImportInput{
//		UserID:   uid,
//		Existing: people.Keys(current),
//	})
//	if errors.Is(err, people.ErrPermissionDenied) {
//		// ask the user to allow access, then retry
//	}
//
// 2) Preview drafts without importing:
//
//	drafts, err := contacts.New().Fetch(ctx, 20)
//	for _, d := range drafts {
//		key, err := identity.Resolve(identity.Candidate{Name: d.Name, Email: d.Email, Phone: d.Phone})
//		// ...
//	}
package contacts

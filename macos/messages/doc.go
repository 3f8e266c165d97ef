// Package messages turns the people a user texts into import drafts.
//
// Data sources
//
//   - SQLite (~/Library/Messages/chat.db), opened read-only: one row per
//     one-on-one chat with its handle, service, message count and last
//     message time.
//   - AppleScript (Messages.app): contact name enrichment. When Messages.app
//     cannot be scripted the names are left empty and drafts fall back to
//     the handle.
//
// Exported API
//
//  1. New(opts...)
//     Build a Source. WithPath points it at another chat database.
//  2. Source.RequestAccess(ctx)
//     Check the database is readable. Reading it needs Full Disk Access;
//     without it the error matches people.ErrPermissionDenied.
//  3. Source.Correspondents(ctx, limit)
//     Recent one-on-one chats, newest first. Group chats are skipped.
//  4. Source.Fetch(ctx, limit)
//     The same list as people.Draft values, with email handles in Email and
//     phone handles in Phone.
//
// Operational notes
//
//   - This package never writes to chat.db and never sends messages.
//   - SQLite access uses github.com/mattn/go-sqlite3 (CGO required).
package messages

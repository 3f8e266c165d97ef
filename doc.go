// Package stayconnected is a lightweight index for the packages in this module.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete functionality.
//
// Available subpackages:
//   - github.com/spachava753/stayconnected/identity
//     Resolves a contact to its stable storage key (id, email, phone, name hash).
//   - github.com/spachava753/stayconnected/people
//     The people book: validated edits and duplicate-free batch import.
//   - github.com/spachava753/stayconnected/plans
//     One-on-one plans with people.
//   - github.com/spachava753/stayconnected/auth
//     Local accounts, anonymous sign-in and identity change callbacks.
//   - github.com/spachava753/stayconnected/session
//     Keeps one live people subscription bound to the signed-in user.
//   - github.com/spachava753/stayconnected/store
//     SQLite persistence with live snapshots.
//   - github.com/spachava753/stayconnected/macos/contacts
//     Import source backed by the macOS address book.
//   - github.com/spachava753/stayconnected/macos/messages
//     Import source backed by the macOS Messages history.
//   - github.com/spachava753/stayconnected/mail
//     IMAP import source and SMTP plan reminders.
//   - github.com/spachava753/stayconnected/config
//     YAML config file for the stayconnected command.
//
// Discovery workflow for agents:
//   - Run: go doc github.com/spachava753/stayconnected
//   - Then drill in with:
//     go doc github.com/spachava753/stayconnected/people
//     go doc github.com/spachava753/stayconnected/session
//     go doc github.com/spachava753/stayconnected/macos/contacts
package stayconnected

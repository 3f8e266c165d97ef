// Package identity derives stable storage keys for contact candidates.
//
// A key is computed from the strongest identity signal a candidate carries,
// in this order:
//
//   - ID: an external identifier (for example a device contacts record id),
//     used verbatim after trimming.
//   - Email: "email:" + trimmed, lowercased address.
//   - Phone: "phone:" + the decimal digits of the number.
//   - Name: "name:" + Hash of the trimmed, whitespace-collapsed, lowercased name.
//
// Resolve is pure: the same candidate always yields the same key, across
// processes and restarts. Importers rely on this to make repeated imports of
// the same person converge on one stored record.
//
// # Caller Contract
//
// The email, phone and name branches use distinct literal prefixes and never
// overlap. The ID branch is passed through unchanged, so callers must not
// supply ids that begin with "email:", "phone:" or "name:". This is not
// enforced.
//
// # Known Limitation
//
// Hash is a 32-bit non-cryptographic string hash. Two different names can
// collide on the name branch. The name branch is a last-resort fallback for
// candidates without id, email or phone, not a security boundary.
//
// Example:
//
//	key, err := identity.Resolve(identity.Candidate{
//		Name:  "Jane Doe",
//		Phone: "(555) 123-4567",
//	})
//	// key == "phone:5551234567"
package identity

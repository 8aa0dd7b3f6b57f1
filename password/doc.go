// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC form:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
//
// Hashes imported from the previous shop backend are still accepted:
// pbkdf2_sha256 in both its four-field and combined three-field layouts, and
// bcrypt ($2a$, $2b$, $2y$). [Hasher.NeedsRehash] reports true for all of
// them so the caller can upgrade the stored hash after a successful login.
//
// Hash and verify calls share a weighted semaphore; a burst of logins queues
// instead of allocating unbounded argon2 memory.
//
// Password policy (length and character classes) is enforced by the caller.
package password

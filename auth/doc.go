// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides keys, tokens, and identifier helpers.

# Admin Keys

Admin keys are HMAC-SHA256 of the poll ID under the admin salt:

	key := auth.AdminKey(pollID, salt)
	err := auth.CheckAdminKey(pollID, key, salt)

Nothing is stored; the server recomputes the key on every admin request.

# Voter Tokens

Claiming an address hands out a random 192-bit token:

	token, err := auth.NewVoterToken()

The token authenticates ballot submissions for that address.

# Addresses

Account addresses are 0x followed by 40 hex characters. NormalizeAddress
lowercases them so weight lookups and voter rows agree:

	addr, err := auth.NormalizeAddress("0xAbC...")

# Share Slugs and IDs

	slug := auth.ShareSlug(pollID, salt) // base62, deterministic
	id := auth.NewID()                   // UUIDv4

# IP Hashing

	hash := auth.HashIP(ipAddress, salt)

Returns 16 hex chars of a salted HMAC.
*/
package auth

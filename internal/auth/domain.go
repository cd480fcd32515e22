package auth

// Account is the credential-bearing view of a user consulted at login.
type Account struct {
	ID               string
	Email            string
	CredentialDigest string
	Disabled         bool
}

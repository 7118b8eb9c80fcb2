package auth

import "errors"

var (
	EmptyCredentialsErr   = errors.New("email and password are required")
	InvalidProviderErr    = errors.New("unsupported identity provider")
	EmptyIdentityTokenErr = errors.New("identity token is empty")
)

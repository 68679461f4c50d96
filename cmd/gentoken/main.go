// Command gentoken mints a bearer token for an existing account, signed with
// JWT_SECRET, for poking at the API from curl during development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

func main() {
	var (
		subject = flag.String("sub", "", "account id (required)")
		kind    = flag.String("type", "user", "account type: user or admin")
		role    = flag.String("role", string(auth.RoleUser), "admin role: owner or user")
		expiry  = flag.Duration("expiry", time.Hour, "token lifetime")
		baseURL = flag.String("url", "http://localhost:5000", "server URL for the example command")
	)
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" || *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: JWT_SECRET=... gentoken -sub <account id> [-type admin -role owner]")
		os.Exit(2)
	}

	token, err := mint(auth.NewJWTManager(secret, *expiry, "eventplanner"), *kind, *subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "\ncurl -H 'Authorization: Bearer %s' %s/api/auth/me\n", token, *baseURL)
}

// mint signs a token; the server still reads role and permissions from
// storage, so the role only matters for display.
func mint(tokens *auth.JWTManager, kind, subject, role string) (string, error) {
	switch kind {
	case "user":
		return tokens.GenerateUser(auth.UserIdentity{ID: subject})
	case "admin":
		r, ok := auth.ParseRole(role)
		if !ok {
			return "", fmt.Errorf("unknown role %q", role)
		}
		return tokens.GenerateAdmin(auth.AdminIdentity{ID: subject, Role: r, Permissions: auth.PermissionsForRole(r)})
	default:
		return "", fmt.Errorf("unknown account type %q", kind)
	}
}

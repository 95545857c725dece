// cmd/token mints an operator JWT for the daemon's POST /run endpoint.
// The signing secret comes from MONITOR_JWT_SECRET or the -secret flag and
// must match the daemon's api.jwt_secret.
package main

import (
	"flag"
	"fmt"
	"os"

	"mssp-monitor/internal/auth"
)

func main() {
	operator := flag.String("operator", "", "operator name embedded in the token")
	secret := flag.String("secret", os.Getenv("MONITOR_JWT_SECRET"), "JWT signing secret")
	flag.Parse()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "usage: token -operator <name> [-secret <secret>]")
		os.Exit(2)
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "error: no signing secret (set MONITOR_JWT_SECRET or -secret)")
		os.Exit(2)
	}

	auth.SetSecret(*secret)
	token, err := auth.GenerateToken(*operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

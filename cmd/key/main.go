package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/cli"
)

func main() {
	var (
		driverID = flag.String("driver-id", "", "Driver account ID (token subject)")
		role     = flag.String("role", "DRIVER", "Account role: DRIVER | DISPATCHER")
		secret   = flag.String("secret", "", "JWT HMAC secret (HS256)")
		ttl      = flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *driverID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --driver-id=<id> --role=DRIVER --secret='<secret>' [--ttl=12h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateDriverToken(*secret, *driverID, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}

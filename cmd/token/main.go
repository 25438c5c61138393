// Command token mints a bearer token for a member id, signed with the
// server's JWT_SECRET. The ledger has no login flow; tokens are issued by
// whatever identity layer fronts it, and this tool stands in for it locally.
//
//	go run ./cmd/token -member alice -name "Alice"
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/config"
	"github.com/mmynk/groupledger/pkg/logging"
)

func main() {
	logging.Setup()

	member := flag.String("member", "", "member id to put in the token")
	name := flag.String("name", "", "optional display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL).Generate(*member, *name)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

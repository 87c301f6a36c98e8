package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/config"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/database"
	"github.com/thenfour/CafeMarcheDB-sub005/internal/repository"
	"github.com/thenfour/CafeMarcheDB-sub005/migrations"
)

func main() {
	// Flags for customization
	email := flag.String("email", "", "Email of the user to create or promote (required)")
	name := flag.String("name", "", "Display name for a new user (default: the email)")
	role := flag.String("role", "role:admin", "Role to assign")
	seed := flag.Bool("seed", true, "Load permissions and built-in roles first")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Error: -email is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to SurrealDB at %s:%s: %v\n", cfg.Database.Host, cfg.Database.Port, err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *seed {
		if err := migrations.Apply(ctx, db); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying schema: %v\n", err)
			os.Exit(1)
		}
		if err := migrations.Seed(ctx, db); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading reference data: %v\n", err)
			os.Exit(1)
		}
	}

	id, created, err := repository.NewUserRepository(db).PromoteSysAdmin(ctx, *email, *name, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output := map[string]any{
			"user_id":      id,
			"email":        *email,
			"role":         *role,
			"is_sys_admin": true,
			"created":      created,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	action := "Promoted"
	if created {
		action = "Created"
	}
	fmt.Printf("%s sysadmin\n", action)
	fmt.Println("================")
	fmt.Printf("User ID:  %s\n", id)
	fmt.Printf("Email:    %s\n", *email)
	fmt.Printf("Role:     %s\n", *role)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'X-User-ID: %s' -H 'X-Intention: admin' http://localhost:%s/v1/tables\n", id, cfg.Server.Port)
}

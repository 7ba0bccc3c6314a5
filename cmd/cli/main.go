package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alextreichler/qrmenu/internal/auth"
	"github.com/alextreichler/qrmenu/internal/config"
	"github.com/alextreichler/qrmenu/internal/models"
	"github.com/alextreichler/qrmenu/internal/store/backend"
	qrcode "github.com/skip2/go-qrcode"
)

const usage = "expected 'add-user' or 'qr' subcommand"

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	name := addUserCmd.String("name", "", "Display name for the new user")
	email := addUserCmd.String("email", "", "Email for the new user")
	password := addUserCmd.String("password", "", "Password for the new user")
	role := addUserCmd.String("role", models.RoleAdmin, "Role: admin or customer")

	qrCmd := flag.NewFlagSet("qr", flag.ExitOnError)
	out := qrCmd.String("out", "menu-qr.png", "Where to write the PNG")
	size := qrCmd.Int("size", 300, "Image size in pixels")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *name == "" || *email == "" || *password == "" {
			fmt.Println("name, email and password are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		createUser(cfg, *name, *email, *password, *role)
	case "qr":
		qrCmd.Parse(os.Args[2:])
		writeQR(cfg.MenuURL(), *out, *size)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createUser(cfg *config.Config, name, email, password, role string) {
	ctx := context.Background()
	// Opening the store also applies migrations, so this works before the
	// server has ever run.
	repo, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer repo.Close()

	user, err := auth.NewService(repo).CreateUser(ctx, name, email, password, role)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	fmt.Printf("User '%s' (%s) created successfully.\n", user.Email, user.Role)
}

func writeQR(menuURL, path string, size int) {
	if err := qrcode.WriteFile(menuURL, qrcode.Medium, size, path); err != nil {
		log.Fatalf("Failed to write QR code: %v", err)
	}
	fmt.Printf("QR code for %s written to %s\n", menuURL, path)
}

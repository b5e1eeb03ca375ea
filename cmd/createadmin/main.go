// Command createadmin bootstraps an active admin user with a demo account.
//
//	ADMIN_PASSWORD=... createadmin -email root@example.com -username root
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"swiftx/internal/auth"
	"swiftx/internal/config"
	"swiftx/internal/db"
	"swiftx/internal/logger"

	"go.uber.org/zap"
)

func main() {
	email := flag.String("email", "", "admin email")
	username := flag.String("username", "admin", "admin username")
	firstName := flag.String("first-name", "Admin", "first name")
	lastName := flag.String("last-name", "", "last name")
	password := flag.String("password", "", "admin password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, lg)
	if err != nil {
		lg.Fatal("open storage", zap.Error(err))
	}
	defer st.Close()

	svc, err := auth.NewService(st, nil, auth.Options{BcryptCost: cfg.BcryptCost}, lg)
	if err != nil {
		lg.Fatal("init auth", zap.Error(err))
	}
	id, err := svc.CreateAdmin(ctx, auth.RegisterInput{
		FirstName: *firstName,
		LastName:  *lastName,
		Username:  *username,
		Email:     *email,
		Password:  *password,
	})
	if err != nil {
		lg.Fatal("create admin", zap.String("email", *email), zap.Error(err))
	}
	fmt.Printf("admin created: id=%d email=%s\n", id, *email)
}

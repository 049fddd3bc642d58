package main

import (
	"fmt"
	"os"

	"gstrecon/internal/config"
	"gstrecon/internal/recon"
	"gstrecon/internal/server"
	"gstrecon/internal/session"
	"gstrecon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := config.Logger()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	sessions := session.NewService(recon.Config{
		MatchMinScore:      cfg.MatchMinScore,
		DateToleranceDays:  cfg.DateToleranceDays,
		AmountTolerancePct: cfg.AmountTolerancePct,
		AmountToleranceAbs: cfg.AmountToleranceAbs,
		MinorIssueLimit:    cfg.MinorIssueLimit,
		MatchedRatioFloor:  cfg.MatchedRatioFloor,
	}, log)

	srv := server.New(cfg, log, sessions, db)
	must(srv.Run())
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

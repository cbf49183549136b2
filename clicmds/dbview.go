package clicmds

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"gitlab.com/phishguard/store"
)

// DBViewFlags for the dbview command
func DBViewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "data directory",
			Value: "phishguardtmp",
		},
		&cli.BoolFlag{
			Name:  "history",
			Usage: "prints recorded decisions",
			Value: false,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "max history entries to print",
			Value: 50,
		},
	}
}

// DBView dumps the live guard state and, optionally, the decision history
func DBView(ctx *cli.Context) error {
	state := store.NewStateStore(ctx.String("datadir") + "/state")
	if err := state.Init(); err != nil {
		log.Error().Err(err).Msg("failed to init database for viewing")
		return err
	}
	defer state.Close()

	settings, err := state.Settings()
	if err != nil {
		return err
	}
	fmt.Printf("detectionEnabled: %t\ndeveloperMode: %t\n", settings.DetectionEnabled, settings.DeveloperMode)

	count, err := state.SitesProtected()
	if err != nil {
		return err
	}
	fmt.Printf("sitesProtectedCount: %d\n", count)

	domains, err := state.TrustedDomains()
	if err != nil {
		return err
	}
	fmt.Printf("trustedDomains (%d):\n", len(domains))
	for d := range domains {
		fmt.Printf("  %s\n", d)
	}

	bypass, err := state.BypassURL()
	if err != nil {
		return err
	}
	if bypass != "" {
		fmt.Printf("bypassURL: %s\n", bypass)
	}

	rec, err := state.Decision()
	if err != nil {
		return err
	}
	if rec != nil {
		fmt.Printf("lastCheckedURL: %s\nlastDecision: %s\nconfidence: %.3f\nfallbackURL: %s\ncheckedAt: %s\n",
			rec.URL, rec.Decision, rec.Confidence, rec.FallbackURL, rec.CheckedAt.Format(time.RFC3339))
	}

	if !ctx.Bool("history") {
		return nil
	}

	history := store.NewHistory(ctx.String("datadir") + "/history")
	if err := history.Init(); err != nil {
		return err
	}
	defer history.Close()

	records, err := history.Recent(context.Background(), ctx.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Printf("decisions (%d):\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s  %-8s  %.3f  %s\n", r.CheckedAt.Format(time.RFC3339), r.Decision, r.Confidence, r.URL)
	}
	return nil
}

package clicmds

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"gitlab.com/phishguard/guard/classify"
)

// CheckFlags for the check command
func CheckFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "url",
			Usage: "url to classify",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "classifier",
			Usage: "base URL of the prediction service",
			Value: "http://127.0.0.1:8000",
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "seconds to wait on the classifier",
			Value: 30,
		},
	}
}

// Check classifies a single URL and prints the verdict, useful for probing
// the prediction service without a browser attached
func Check(ctx *cli.Context) error {
	uri := ctx.String("url")
	if uri == "" {
		return fmt.Errorf("no url given")
	}

	client := classify.NewClient(ctx.String("classifier"), time.Duration(ctx.Int("timeout"))*time.Second)
	verdict, err := client.Classify(context.Background(), uri)
	if err != nil {
		return err
	}

	fmt.Printf("url: %s\nverdict: %s\nprobability: %.3f\n", uri, verdict.Decision(), verdict.Probability)
	return nil
}

// cmd/tools/draft-preview/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"support-drafts/internal/app"
	"support-drafts/internal/common/config"
	apperrors "support-drafts/internal/common/errors"
	"support-drafts/internal/common/logger"
	"support-drafts/internal/common/observability"
	"support-drafts/internal/drafting/safety"
	"support-drafts/internal/drafting/service"
	"support-drafts/internal/models"
)

var (
	configPath = flag.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	ticketID   = flag.String("ticket", "", "Ticket ID to draft a reply for")
	orgID      = flag.String("org", "", "Organization ID owning the ticket")
	message    = flag.String("message", "", "Customer message (default: latest public customer message of the ticket)")
	regenerate = flag.Bool("regenerate", false, "Skip the fallback gate as a manual regeneration does")
	screenOnly = flag.Bool("screen", false, "Only run safety screening on -message")
	timeout    = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	verbose    = flag.Bool("v", false, "Log pipeline details to stderr")
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func main() {
	flag.Parse()

	if *screenOnly {
		if *message == "" {
			exitf("-screen requires -message")
		}
		os.Exit(runScreen(*message))
	}
	if *ticketID == "" || *orgID == "" {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exiting.
func run() int {
	cfg, err := loadConfig()
	if err != nil {
		exitf("config: %v", err)
	}

	log := logger.NewNoOpLogger()
	if *verbose {
		log = logger.NewZapAdapter(logger.New("debug", "console"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	obs := observability.New("draft-preview", log)
	defer obs.Shutdown()

	drafts, err := app.Build(ctx, cfg, app.Options{Offline: true}, obs, log)
	if err != nil {
		exitf("startup: %v", err)
	}
	defer drafts.Close()

	res, err := drafts.Service.Draft(ctx, service.Command{
		TicketID:       *ticketID,
		OrganizationID: *orgID,
		Message:        *message,
		Regenerate:     *regenerate,
	})
	if err != nil {
		printError(err)
		return 1
	}
	printDraft(res.Draft)
	if res.Input != nil {
		printScreening(res.Input)
	}
	return 0
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFromFile(*configPath)
	}
	return config.Load()
}

// runScreen needs no backing services.
func runScreen(text string) int {
	processor, err := safety.NewProcessor(safety.DefaultOptions())
	if err != nil {
		exitf("screening: %v", err)
	}
	in := processor.Process(text)
	printScreening(in)
	if in.ShouldBlock {
		return 1
	}
	return 0
}

func printDraft(d *models.DraftOutput) {
	fmt.Println(bold("Draft"))
	fmt.Printf("  state:       %s\n", stateLabel(d))
	fmt.Printf("  confidence:  %s (%.3f)\n", levelLabel(d.ConfidenceLevel), d.Confidence)
	fmt.Printf("  review:      %v\n", d.NeedsReview)
	fmt.Printf("  model:       %s  elapsed: %dms\n", d.Metadata.Model, d.Metadata.ElapsedMs)
	if u := d.Metadata.TokenUsage; u != nil {
		fmt.Printf("  tokens:      %d\n", u.TotalTokens)
	}
	if d.ConfidenceExplanation != "" {
		fmt.Printf("  %s\n", faint(d.ConfidenceExplanation))
	}
	fmt.Println()

	fmt.Println(indent(d.Content))
	fmt.Println()

	if len(d.Sources) > 0 {
		fmt.Println(bold("Sources"))
		for _, s := range d.Sources {
			fmt.Printf("  %s %s %s %s\n", cyan(fmt.Sprintf("%.3f", s.Similarity)), s.Type, s.ID, faint(s.Title))
		}
		fmt.Println()
	}

	if len(d.SuggestedActions) > 0 {
		fmt.Println(bold("Suggested actions"))
		for _, a := range d.SuggestedActions {
			fmt.Printf("  - %s\n", a)
		}
		fmt.Println()
	}
}

func printScreening(in *models.ProcessedInput) {
	fmt.Println(bold("Screening"))
	fmt.Printf("  risk:   %s\n", riskLabel(in.RiskLevel))
	if len(in.PIITypes) > 0 {
		types := make([]string, len(in.PIITypes))
		for i, t := range in.PIITypes {
			types[i] = string(t)
		}
		fmt.Printf("  pii:    %s\n", strings.Join(types, ", "))
	}
	if len(in.Flags) > 0 {
		fmt.Printf("  flags:  %s\n", strings.Join(in.Flags, ", "))
	}
	fmt.Printf("  text:   %s\n", faint(in.RedactedText))
}

func printError(err error) {
	stdErr := apperrors.Normalize(err)
	fmt.Fprintf(os.Stderr, "%s %s\n", red(string(stdErr.Code)), stdErr.Message)
	if stdErr.Details != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", stdErr.Details)
	}
	for k, v := range stdErr.Metadata {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
	}
}

func stateLabel(d *models.DraftOutput) string {
	if d.IsFallback {
		return yellow(fmt.Sprintf("%s (%s)", d.Metadata.State, d.FallbackReason))
	}
	return green(string(d.Metadata.State))
}

func levelLabel(l models.ConfidenceLevel) string {
	switch l {
	case models.ConfidenceHigh:
		return green(string(l))
	case models.ConfidenceMedium:
		return yellow(string(l))
	default:
		return red(string(l))
	}
}

func riskLabel(r models.RiskLevel) string {
	switch r {
	case models.RiskNone:
		return green(string(r))
	case models.RiskLow, models.RiskMedium:
		return yellow(string(r))
	default:
		return red(string(r))
	}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	os.Exit(1)
}

package cli

import (
	"flag"
	"fmt"
	"time"

	"github.com/aleph70/reconcile-backend/internal/application/reconcile"
	"github.com/aleph70/reconcile-backend/internal/domain/matcher"
	"github.com/aleph70/reconcile-backend/internal/infrastructure/config"
)

// ReconcileFlags are the flags for the reconcile command
type ReconcileFlags struct {
	ConfigFile   string
	DBPath       string
	From         string
	To           string
	LookbackDays int
	DryRun       bool
	Verbose      bool
}

// ParseReconcileFlags parses the reconcile command line
func ParseReconcileFlags() ReconcileFlags {
	var flags ReconcileFlags
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.DBPath, "db", "", "Database path (overrides config)")
	flag.StringVar(&flags.From, "from", "", "Window start, YYYY-MM-DD (overrides -days)")
	flag.StringVar(&flags.To, "to", "", "Window end, YYYY-MM-DD (defaults to today)")
	flag.IntVar(&flags.LookbackDays, "days", 90, "Number of days to look back")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Resolve without persisting records")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ToRunOptions converts the flags to run options. The window defaults
// to the last -days ending today; -from and -to override it.
func (f ReconcileFlags) ToRunOptions(now time.Time) (reconcile.Options, error) {
	opts := reconcile.Options{
		From:    now.AddDate(0, 0, -f.LookbackDays),
		To:      now,
		DryRun:  f.DryRun,
		Verbose: f.Verbose,
	}

	if f.From != "" {
		from, err := time.Parse("2006-01-02", f.From)
		if err != nil {
			return reconcile.Options{}, fmt.Errorf("invalid -from date %q: %w", f.From, err)
		}
		opts.From = from
	}
	if f.To != "" {
		to, err := time.Parse("2006-01-02", f.To)
		if err != nil {
			return reconcile.Options{}, fmt.Errorf("invalid -to date %q: %w", f.To, err)
		}
		opts.To = to
	}

	return opts, nil
}

// MatcherConfig builds the matching configuration from the application
// config, keeping the defaults for anything unset.
func MatcherConfig(cfg *config.Config) matcher.Config {
	mc := matcher.DefaultConfig()
	if cfg.Matching.LookbackDays > 0 {
		mc.LookbackDays = cfg.Matching.LookbackDays
	}
	if cfg.Matching.ForwardSlackDays > 0 {
		mc.ForwardSlackDays = cfg.Matching.ForwardSlackDays
	}
	if cfg.Matching.NearWindowDays > 0 {
		mc.NearWindowDays = cfg.Matching.NearWindowDays
	}
	if cfg.Matching.MaxSplitInvoices > 0 {
		mc.MaxSplitInvoices = cfg.Matching.MaxSplitInvoices
	}
	if cfg.Matching.MaxSplitCandidates > 0 {
		mc.MaxSplitCandidates = cfg.Matching.MaxSplitCandidates
	}
	return mc
}

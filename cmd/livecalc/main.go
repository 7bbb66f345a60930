// Package main provides the LiveCalc CLI for running valuation kernel
// jobs against a local policy file, local or remote assumption tables,
// and a deterministic scenario set.
//
// Usage:
//
//	livecalc run --policies <file.csv> [--mortality-version <ver> | --mortality-file <file.csv>]
//	    [--lapse-version <ver> | --lapse-file <file.csv>] [--expense-version <ver> | --expense-file <file.csv>]
//	    [--scenarios <n>] [--seed <s>] [--initial-rate <r>] [--drift <d>] [--volatility <v>]
//	livecalc serve [--addr <host:port>] --mortality-version <ver> --lapse-version <ver> --expense-version <ver>
//	livecalc version
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/R3E-Network/livecalc/infrastructure/amclient/token"
	"github.com/R3E-Network/livecalc/infrastructure/amclient/transport"
	"github.com/R3E-Network/livecalc/infrastructure/config"
	"github.com/R3E-Network/livecalc/infrastructure/tablecache"
	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/domain/policy"
	"github.com/R3E-Network/livecalc/internal/orchestrator"
	"github.com/R3E-Network/livecalc/internal/resolver"
	"github.com/R3E-Network/livecalc/internal/valuation"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		cmdRun(args)
	case "serve":
		cmdServe(args)
	case "version":
		fmt.Println("livecalc (dev build)")
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`LiveCalc CLI - Stochastic Valuation Kernel runner

Usage:
  livecalc run --policies <file.csv> [flags]
  livecalc serve --addr <host:port> --mortality-version <v> --lapse-version <v> --expense-version <v>
  livecalc version

Flags for run:
  --policies <path>         Policy CSV: id,age,gender,sum_assured,premium,term,product_type,underwriting_class
  --mortality-version <v>   Mortality table version (network) or use --mortality-file
  --mortality-file <path>   Local mortality CSV fallback
  --lapse-version <v>
  --lapse-file <path>
  --expense-version <v>
  --expense-file <path>
  --scenarios <n>           Number of scenarios to generate (default 1000)
  --seed <n>                RNG seed (default 42)
  --initial-rate <f>        Default 0.03
  --drift <f>               Default 0.0
  --volatility <f>          Default 0.1

Environment:
  LIVECALC_AM_URL             Assumptions Manager base URL
  LIVECALC_AM_TOKEN           Pre-issued bearer token (lazy token handler)
  LIVECALC_AM_CACHE_DIR       Override for the on-disk table cache root
  LIVECALC_AM_CACHE_BUDGET    In-memory cache byte budget (default 256MB)
  LIVECALC_AM_TIMEOUT         HTTP client timeout (default 30s)`)
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	policiesPath := fs.String("policies", "", "path to policy CSV")
	mortalityVersion := fs.String("mortality-version", "", "mortality table version")
	mortalityFile := fs.String("mortality-file", "", "local mortality CSV path")
	lapseVersion := fs.String("lapse-version", "", "lapse table version")
	lapseFile := fs.String("lapse-file", "", "local lapse CSV path")
	expenseVersion := fs.String("expense-version", "", "expense table version")
	expenseFile := fs.String("expense-file", "", "local expense CSV path")
	scenarioCount := fs.Int("scenarios", 1000, "number of scenarios")
	seed := fs.Uint64("seed", 42, "RNG seed")
	initialRate := fs.Float64("initial-rate", 0.03, "initial scenario rate")
	drift := fs.Float64("drift", 0.0, "scenario drift")
	volatility := fs.Float64("volatility", 0.1, "scenario volatility")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := run(runOptions{
		policiesPath:     *policiesPath,
		mortalityVersion: *mortalityVersion,
		mortalityFile:    *mortalityFile,
		lapseVersion:     *lapseVersion,
		lapseFile:        *lapseFile,
		expenseVersion:   *expenseVersion,
		expenseFile:      *expenseFile,
		scenarioCount:    *scenarioCount,
		seed:             *seed,
		initialRate:      *initialRate,
		drift:            *drift,
		volatility:       *volatility,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	mortalityVersion := fs.String("mortality-version", "", "mortality table version")
	lapseVersion := fs.String("lapse-version", "", "lapse table version")
	expenseVersion := fs.String("expense-version", "", "expense table version")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := serve(*addr, *mortalityVersion, *lapseVersion, *expenseVersion); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serve starts the orchestrator's debug introspection HTTP server. It
// warms a resolver engine against the three assumption tables named on the
// command line, then listens for /run_chunk requests against a valuation
// engine sharing those tables. config/engines.yaml (if present) gates
// whether the resolver and valuation engines run at all; an absent file
// falls back to both enabled.
func serve(addr, mortalityVersion, lapseVersion, expenseVersion string) error {
	log := logger.NewFromEnv("livecalc-server")

	engineCfg := config.LoadEngineConfigOrDefault()
	if !engineCfg.IsEnabled("resolver") {
		return fmt.Errorf("serve: resolver engine is disabled in engines.yaml, but valuation cannot warm its tables without it")
	}

	res, err := newResolver(log)
	if err != nil {
		return err
	}

	resolverEngine := orchestrator.NewResolverEngine(res, log)
	orch := orchestrator.New(log)

	cfg := orchestrator.Config{
		"mortality_version": mortalityVersion,
		"lapse_version":     lapseVersion,
		"expense_version":   expenseVersion,
	}
	if err := resolverEngine.Initialize(context.Background(), cfg, nil); err != nil {
		return fmt.Errorf("warm resolver engine: %w", err)
	}

	if !engineCfg.IsEnabled("valuation") {
		log.Info("valuation engine disabled in engines.yaml, serving healthz only")
		server := orchestrator.NewServer(orch, nil, orchestrator.Config{}, nil, log)
		log.WithField("addr", addr).Info("listening")
		return http.ListenAndServe(addr, server.Router())
	}

	valuationEngine := orchestrator.NewValuationEngine(log)
	runCfg := orchestrator.Config{
		"tables":    resolverEngine.Tables(),
		"scenarios": assumptions.ScenarioSet(valuation.GenerateScenarios(1000, valuation.ScenarioParams{
			InitialRate: 0.03, Drift: 0, Volatility: 0.1, MinRate: 0, MaxRate: 1,
		}, 42)),
		"stress": valuation.DefaultStressConfig(),
	}
	if err := valuationEngine.Initialize(context.Background(), runCfg, nil); err != nil {
		return fmt.Errorf("warm valuation engine: %w", err)
	}

	server := orchestrator.NewServer(orch, []orchestrator.Engine{valuationEngine}, orchestrator.Config{}, nil, log)
	log.WithField("addr", addr).Info("listening")
	return http.ListenAndServe(addr, server.Router())
}

type runOptions struct {
	policiesPath     string
	mortalityVersion string
	mortalityFile    string
	lapseVersion     string
	lapseFile        string
	expenseVersion   string
	expenseFile      string
	scenarioCount    int
	seed             uint64
	initialRate      float64
	drift            float64
	volatility       float64
}

func run(opts runOptions) error {
	if opts.policiesPath == "" {
		return fmt.Errorf("--policies is required")
	}

	policies, err := loadPolicies(opts.policiesPath)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	log := logger.NewFromEnv("livecalc-cli")

	tables, err := resolveTables(log, opts)
	if err != nil {
		return fmt.Errorf("resolve tables: %w", err)
	}

	scenarios := valuation.GenerateScenarios(opts.scenarioCount, valuation.ScenarioParams{
		InitialRate: opts.initialRate,
		Drift:       opts.drift,
		Volatility:  opts.volatility,
		MinRate:     0,
		MaxRate:     1,
	}, opts.seed)

	result := valuation.Run(context.Background(), valuation.RunConfig{
		Policies:  policies,
		Tables:    tables,
		Scenarios: scenarios,
		Stress:    valuation.DefaultStressConfig(),
	}, log)

	return printDistribution(result.Distribution)
}

func resolveTables(log *logger.Logger, opts runOptions) (valuation.Tables, error) {
	var mortality assumptions.MortalityTable
	var lapse assumptions.LapseTable
	var expense assumptions.ExpenseTable

	needsNetwork := opts.mortalityFile == "" || opts.lapseFile == "" || opts.expenseFile == ""

	var res *resolver.Resolver
	if needsNetwork {
		var err error
		res, err = newResolver(log)
		if err != nil {
			return valuation.Tables{}, err
		}
	}

	ctx := context.Background()

	if opts.mortalityFile != "" {
		result, err := resolver.LoadLocalMortality(opts.mortalityFile)
		if err != nil {
			return valuation.Tables{}, err
		}
		mortality, err = assumptions.NewMortalityTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	} else {
		result, err := res.Resolve(ctx, "mortality", opts.mortalityVersion)
		if err != nil {
			return valuation.Tables{}, err
		}
		mortality, err = assumptions.NewMortalityTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	}

	if opts.lapseFile != "" {
		result, err := resolver.LoadLocalLapse(opts.lapseFile)
		if err != nil {
			return valuation.Tables{}, err
		}
		lapse, err = assumptions.NewLapseTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	} else {
		result, err := res.Resolve(ctx, "lapse", opts.lapseVersion)
		if err != nil {
			return valuation.Tables{}, err
		}
		lapse, err = assumptions.NewLapseTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	}

	if opts.expenseFile != "" {
		result, err := resolver.LoadLocalExpense(opts.expenseFile)
		if err != nil {
			return valuation.Tables{}, err
		}
		expense, err = assumptions.NewExpenseTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	} else {
		result, err := res.Resolve(ctx, "expense", opts.expenseVersion)
		if err != nil {
			return valuation.Tables{}, err
		}
		expense, err = assumptions.NewExpenseTable(result.Data)
		if err != nil {
			return valuation.Tables{}, err
		}
	}

	return valuation.Tables{Mortality: mortality, Lapse: lapse, Expense: expense}, nil
}

func newResolver(log *logger.Logger) (*resolver.Resolver, error) {
	amURL, amToken, cacheDir, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	timeout := config.ParseDurationOrDefault(config.GetEnv("LIVECALC_AM_TIMEOUT", ""), 30*time.Second)
	tr, err := transport.New(transport.Config{BaseURL: amURL, Timeout: timeout, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("construct transport: %w", err)
	}

	tok, err := token.NewLazy(amToken)
	if err != nil {
		return nil, fmt.Errorf("construct token handler: %w", err)
	}

	root := cacheDir
	if root == "" {
		root = tablecache.DefaultCacheRoot()
	}
	budget, err := config.ParseByteSize(config.GetEnv("LIVECALC_AM_CACHE_BUDGET", "256MB"))
	if err != nil {
		return nil, fmt.Errorf("parse LIVECALC_AM_CACHE_BUDGET: %w", err)
	}
	cache := tablecache.New(root, budget)

	return resolver.New(tr, tok, cache), nil
}

type credentialsFile struct {
	AMURL    string `json:"am_url"`
	AMToken  string `json:"am_token"`
	CacheDir string `json:"cache_dir"`
}

// loadCredentials resolves (am_url, am_token, cache_dir) from environment
// variables first, falling back to ~/.livecalc/credentials.json for any
// value the environment left unset.
func loadCredentials() (amURL, amToken, cacheDir string, err error) {
	amURL = config.GetEnv("LIVECALC_AM_URL", "")
	amToken = config.GetEnv("LIVECALC_AM_TOKEN", "")
	cacheDir = config.GetEnv("LIVECALC_AM_CACHE_DIR", "")

	if amURL != "" && amToken != "" {
		return amURL, amToken, cacheDir, nil
	}

	home, homeErr := os.UserHomeDir()
	if homeErr != nil {
		if amURL == "" || amToken == "" {
			return "", "", "", fmt.Errorf("LIVECALC_AM_URL and LIVECALC_AM_TOKEN must be set (no home directory to read a credentials file from)")
		}
		return amURL, amToken, cacheDir, nil
	}

	data, readErr := os.ReadFile(filepath.Join(home, ".livecalc", "credentials.json"))
	if readErr != nil {
		if amURL == "" || amToken == "" {
			return "", "", "", fmt.Errorf("LIVECALC_AM_URL and LIVECALC_AM_TOKEN must be set, or ~/.livecalc/credentials.json must exist: %w", readErr)
		}
		return amURL, amToken, cacheDir, nil
	}

	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", "", fmt.Errorf("parse ~/.livecalc/credentials.json: %w", err)
	}

	if amURL == "" {
		amURL = creds.AMURL
	}
	if amToken == "" {
		amToken = creds.AMToken
	}
	if cacheDir == "" {
		cacheDir = creds.CacheDir
	}
	if amURL == "" || amToken == "" {
		return "", "", "", fmt.Errorf("am_url and am_token must be set via environment or credentials file")
	}
	return amURL, amToken, cacheDir, nil
}

func loadPolicies(path string) (policy.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var out policy.Set
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "id" {
			continue
		}
		if len(row) < 8 {
			return nil, fmt.Errorf("%s: row %d has fewer than 8 columns", path, i)
		}

		id, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d invalid id: %w", path, i, err)
		}
		age, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d invalid age: %w", path, i, err)
		}
		gender, err := parseGender(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}
		sumAssured, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d invalid sum_assured: %w", path, i, err)
		}
		premium, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d invalid premium: %w", path, i, err)
		}
		term, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d invalid term: %w", path, i, err)
		}
		productType, err := parseProductType(row[6])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}
		class, err := parseUnderwritingClass(row[7])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}

		p, err := policy.New(id, age, gender, sumAssured, premium, term, productType, class, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i, err)
		}
		out = append(out, p)
	}

	return out, nil
}

func parseGender(s string) (policy.Gender, error) {
	switch s {
	case "M", "Male", "0":
		return policy.Male, nil
	case "F", "Female", "1":
		return policy.Female, nil
	default:
		return 0, fmt.Errorf("unrecognized gender %q", s)
	}
}

func parseProductType(s string) (policy.ProductType, error) {
	switch s {
	case "term", "Term", "0":
		return policy.Term, nil
	case "whole_life", "WholeLife", "1":
		return policy.WholeLife, nil
	case "endowment", "Endowment", "2":
		return policy.Endowment, nil
	default:
		return 0, fmt.Errorf("unrecognized product_type %q", s)
	}
}

func parseUnderwritingClass(s string) (policy.UnderwritingClass, error) {
	switch s {
	case "standard", "Standard", "0":
		return policy.Standard, nil
	case "smoker", "Smoker", "1":
		return policy.Smoker, nil
	case "non_smoker", "NonSmoker", "2":
		return policy.NonSmoker, nil
	case "preferred", "Preferred", "3":
		return policy.Preferred, nil
	case "substandard", "Substandard", "4":
		return policy.Substandard, nil
	default:
		return 0, fmt.Errorf("unrecognized underwriting_class %q", s)
	}
}

func printDistribution(d valuation.Distribution) error {
	fmt.Printf("Scenarios:  %d\n", d.Count)
	fmt.Printf("Mean NPV:   %.2f\n", d.Mean)
	fmt.Printf("StdDev:     %.2f\n", d.StdDev)
	fmt.Printf("P50:        %.2f\n", d.P50)
	fmt.Printf("P75:        %.2f\n", d.P75)
	fmt.Printf("P90:        %.2f\n", d.P90)
	fmt.Printf("P95:        %.2f\n", d.P95)
	fmt.Printf("P99:        %.2f\n", d.P99)
	fmt.Printf("CTE-95:     %.2f\n", d.CTE95)
	return nil
}

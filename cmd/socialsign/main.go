package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/socialsign/internal"
	"github.com/dgellow/socialsign/internal/config"
	"github.com/dgellow/socialsign/internal/log"
	"github.com/dgellow/socialsign/internal/sdk"
	"github.com/prometheus/client_golang/prometheus"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": config.VersionPrefix,
		"google": map[string]any{
			"clientId":     map[string]string{"$env": "GOOGLE_CLIENT_ID"},
			"clientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			"listenAddr":   "127.0.0.1:0",
			"timeout":      "60s",
			"scriptUrl":    sdk.GoogleScriptURL,
		},
		"apple": map[string]any{
			"clientId":     map[string]string{"$env": "APPLE_CLIENT_ID"},
			"redirectUri":  "https://signin.yourcompany.com/auth/apple",
			"callbackAddr": "127.0.0.1:8787",
			"scriptUrl":    sdk.AppleScriptURL,
		},
		"verify":         true,
		"allowedDomains": []string{"yourcompany.com"},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(w io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(w, "Validating: %s\n", path)

	printIssues := func(title string, issues []config.ValidationError) {
		if len(issues) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s (%d):\n", title, len(issues))
		for _, issue := range issues {
			if issue.Path != "" {
				fmt.Fprintf(w, "  - %s: %s\n", issue.Path, issue.Message)
			} else {
				fmt.Fprintf(w, "  - %s\n", issue.Message)
			}
		}
	}
	printIssues("Errors", result.Errors)
	printIssues("Warnings", result.Warnings)

	fmt.Fprintln(w)
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintln(w, "Result: PASS")
	} else if len(result.Errors) == 0 {
		fmt.Fprintln(w, "Result: FAIL (warnings present)")
	} else {
		fmt.Fprintln(w, "Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

// writeResult prints the bare token, or JSON when an identity was verified.
func writeResult(w io.Writer, result *internal.Result) error {
	if result.Identity == nil {
		_, err := fmt.Fprintln(w, result.IDToken)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// redirectLogs sends logs to path so stderr only carries the sign-in URL
// fallback and fatal errors.
func redirectLogs(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(f)
	return func() error {
		log.SetOutput(os.Stderr)
		return f.Close()
	}, nil
}

func run(ctx context.Context, cfg config.Config, provider, metricsFile string, stdout io.Writer) error {
	reg := prometheus.NewRegistry()
	app, err := internal.NewSocialSign(ctx, cfg, internal.Options{Registerer: reg})
	if err != nil {
		return fmt.Errorf("failed to create token broker: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(shutdownCtx); err != nil {
			log.LogWarnWithFields("main", "Callback server shutdown error", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	result, signInErr := app.SignIn(ctx, provider)

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			log.LogWarnWithFields("main", "Failed to write metrics", map[string]any{
				"path":  metricsFile,
				"error": err.Error(),
			})
		}
	}

	if signInErr != nil {
		return signInErr
	}
	return writeResult(stdout, result)
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	provider := flag.String("provider", internal.ProviderGoogle, "identity provider: google or apple")
	verify := flag.Bool("verify", false, "verify the token and print the identity as JSON")
	metricsFile := flag.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	logFile := flag.String("log-file", "", "append logs to this file instead of stderr")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(os.Stdout, *conf); err != nil {
			os.Exit(1)
		}
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	// Fatal errors reach stderr even when logs are redirected.
	fail := func(format string, args ...any) {
		log.LogError(format, args...)
		if *logFile != "" {
			fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
		}
		os.Exit(1)
	}

	if *logFile != "" {
		closeLog, err := redirectLogs(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	if *verify {
		cfg.Verify = true
	}

	log.LogInfoWithFields("main", "Starting socialsign", map[string]any{
		"version":  BuildVersion,
		"config":   *conf,
		"provider": *provider,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *provider, *metricsFile, os.Stdout); err != nil {
		stop()
		fail("Sign-in failed: %v", err)
	}
}

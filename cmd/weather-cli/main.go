// Command weather-cli is a terminal dashboard for the weather API.
//
// Usage:
//
//	weather-cli [-api-url http://127.0.0.1:8000] <command> [args]
//
//	weather <location>        current weather plus related videos
//	records                   stored search history
//	delete <id>               delete a stored record
//	update <id> <condition>   change a record's condition
//	export <csv|json> [file]  download every record (stdout when no file)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/dashboard"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("weather-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiURL := fs.String("api-url", envOr("API_URL", "http://127.0.0.1:8000"), "base URL of the weather API")
	timeout := fs.Duration("timeout", 15*time.Second, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	client := dashboard.NewClient(*apiURL, *timeout)
	if err := dispatch(ctx, client, rest[0], rest[1:], stdout); err != nil {
		var apiErr *dashboard.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			fmt.Fprintln(stderr, "error:", apiErr.Detail)
		} else {
			fmt.Fprintln(stderr, "error:", err)
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func dispatch(ctx context.Context, client *dashboard.Client, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "weather":
		if len(args) == 0 {
			return fmt.Errorf("%w: weather <location>", errUsage)
		}
		ov, err := client.Overview(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return dashboard.WriteOverview(stdout, ov)

	case "records":
		records, err := client.Records(ctx)
		if err != nil {
			return err
		}
		return dashboard.WriteRecords(stdout, records)

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("%w: delete <id>", errUsage)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid id %q", errUsage, args[0])
		}
		if err := client.DeleteRecord(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Record %d deleted.\n", id)
		return nil

	case "update":
		if len(args) < 2 {
			return fmt.Errorf("%w: update <id> <condition>", errUsage)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid id %q", errUsage, args[0])
		}
		condition := strings.Join(args[1:], " ")
		if err := client.UpdateCondition(ctx, id, condition); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Record %d condition set to %q.\n", id, condition)
		return nil

	case "export":
		if len(args) == 0 || len(args) > 2 {
			return fmt.Errorf("%w: export <csv|json> [file]", errUsage)
		}
		if len(args) == 1 {
			return client.Export(ctx, args[0], stdout)
		}
		return exportToFile(ctx, client, args[0], args[1], stdout)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func exportToFile(ctx context.Context, client *dashboard.Client, format, path string, stdout io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := client.Export(ctx, format, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s export to %s.\n", format, path)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

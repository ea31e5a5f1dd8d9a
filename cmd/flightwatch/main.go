package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"flightboard-service/internal/client"
	"flightboard-service/internal/domain/entity"
	"flightboard-service/pkg/logger"
)

const FlightWatchVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime)
}

func main() {
	usage := `Flight board watcher.

The default url is http://localhost:5000. Criteria left out, empty or "null"
match any value.

Usage:
    flightwatch watch [--url=<url>] [--flight=<flight_number>]
        [--from=<airport>] [--to=<airport>] [--debug]
    flightwatch airports [--url=<url>] [<query>]
    flightwatch save [--url=<url>] [--flight=<flight_number>]
        --from=<airport> --to=<airport>
        [--status=<status>] [--takeoff=<time>] [--landing=<time>] [--delay=<minutes>]
    flightwatch history [--url=<url>] <flight_number> [--limit=<limit>]

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --url=<url>                Flight board base url [default: http://localhost:5000].
    --flight=<flight_number>   Flight number. Omitted on save to create a new flight.
    --from=<airport>           Takeoff airport code.
    --to=<airport>             Landing airport code.
    --status=<status>          Flight status [default: hangar].
    --takeoff=<time>           Takeoff time, RFC 3339.
    --landing=<time>           Landing time, RFC 3339.
    --delay=<minutes>          Delay in minutes [default: 0].
    --limit=<limit>            Number of updates to show [default: 20].
    --debug                    Log every merged push.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FlightWatchVersion)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(ctx, opts)
	} else if airports_, _ := opts.Bool("airports"); airports_ {
		err = airports(ctx, opts)
	} else if save_, _ := opts.Bool("save"); save_ {
		err = save(ctx, opts)
	} else if history_, _ := opts.Bool("history"); history_ {
		err = history(ctx, opts)
	}
	if err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--url")
	debug, _ := opts.Bool("--debug")
	level := "warn"
	if debug {
		level = "debug"
	}
	clientLog := logger.NewLoggerWithOptions(logger.Options{Level: level, Development: true})
	defer clientLog.Sync()

	api := client.NewAPIClient(baseURL, nil)
	store := client.NewSyncStore(nil)

	criteria := criteriaFrom(opts)
	if err := store.Apply(ctx, api, criteria); err != nil {
		return fmt.Errorf("get flights: %w", err)
	}
	printBoard(store.Snapshot())

	push, err := client.DialPush(ctx, client.HubURL(baseURL), store, clientLog)
	if err != nil {
		return err
	}
	defer push.Close()

	return push.Run(ctx, func(event entity.FlightUpdated, outcome client.MergeOutcome) {
		if outcome == client.MergeDropped {
			return
		}
		Out.Printf("%s %-8s %s", event.PublishedAt.Local().Format(time.TimeOnly), outcome, formatFlight(event.Flight))
	})
}

func airports(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--url")
	query, _ := opts.String("<query>")

	all, err := client.NewAPIClient(baseURL, nil).GetAirports(ctx)
	if err != nil {
		return fmt.Errorf("get airports: %w", err)
	}
	for _, a := range client.SearchAirports(all, query) {
		Out.Printf("%-4s %s", a.AirportCode, a.AirportName)
	}
	return nil
}

func save(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--url")
	flight := entity.FlightRecord{}
	flight.FlightNumber, _ = opts.String("--flight")
	flight.TakeoffAirport, _ = opts.String("--from")
	flight.LandingAirport, _ = opts.String("--to")
	flight.Status, _ = opts.String("--status")

	var err error
	if flight.TakeoffTime, err = timeOption(opts, "--takeoff"); err != nil {
		return err
	}
	if flight.LandingTime, err = timeOption(opts, "--landing"); err != nil {
		return err
	}
	delay, _ := opts.String("--delay")
	minutes, err := strconv.ParseInt(delay, 10, 32)
	if err != nil {
		return fmt.Errorf("--delay: %w", err)
	}
	flight.DelayMinutes = int32(minutes)

	api := client.NewAPIClient(baseURL, nil)
	id, err := api.SaveFlight(ctx, flight)
	if err != nil {
		return fmt.Errorf("save flight: %w", err)
	}
	Out.Printf("saved %s", id)

	// read the stored flight back through a fresh filter
	store := client.NewSyncStore(nil)
	if err := store.Apply(ctx, api, entity.FilterCriteria{FlightNumber: id}); err != nil {
		return fmt.Errorf("refetch %s: %w", id, err)
	}
	printBoard(store.Snapshot())
	return nil
}

func history(ctx context.Context, opts docopt.Opts) error {
	baseURL, _ := opts.String("--url")
	flightNumber, _ := opts.String("<flight_number>")
	limitStr, _ := opts.String("--limit")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil {
		return fmt.Errorf("--limit: %w", err)
	}

	events, err := client.NewAPIClient(baseURL, nil).FlightHistory(ctx, flightNumber, limit)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	for _, e := range events {
		Out.Printf("%s %s", e.PublishedAt.Local().Format(time.DateTime), formatFlight(e.Flight))
	}
	return nil
}

func criteriaFrom(opts docopt.Opts) entity.FilterCriteria {
	c := entity.FilterCriteria{}
	c.FlightNumber, _ = opts.String("--flight")
	c.TakeoffAirport, _ = opts.String("--from")
	c.LandingAirport, _ = opts.String("--to")
	return c
}

func timeOption(opts docopt.Opts, name string) (time.Time, error) {
	value, _ := opts.String(name)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func printBoard(snap client.Snapshot) {
	Out.Printf("%d flights (%s)", len(snap.Flights), snap.State)
	for _, f := range snap.Flights {
		Out.Printf("  %s", formatFlight(f))
	}
}

func formatFlight(f entity.FlightRecord) string {
	return fmt.Sprintf("%-7s %s -> %s  %-11s %s / %s  +%dm",
		f.FlightNumber, f.TakeoffAirport, f.LandingAirport, f.Status,
		formatTime(f.TakeoffTime), formatTime(f.LandingTime), f.DelayMinutes)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

// Command slotctl talks to a running slotbook API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"slotbook/internal/client"
	"slotbook/internal/models"
)

const usage = `usage: slotctl [-api URL] <command> [flags]

commands:
  sports                                   list sports and grounds
  slots   -date D -sport S                 user day view
  book    -date D -sport S -slots A,B -name N -mobile M [-address X]
  admin   -date D                          operator day view
  cancel  -date D -slot A -sport S -name N
  toggle  -date D -slot A                  block or unblock an empty slot
  export  -from D -to D -out FILE          xlsx workbook
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("slotctl", flag.ContinueOnError)
	apiURL := global.String("api", envOr("SLOTBOOK_API", "http://localhost:8080"), "API base URL")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("command is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(*apiURL)
	cmd, rest := global.Arg(0), global.Args()[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	date := fs.String("date", "", "date YYYY-MM-DD")
	sport := fs.String("sport", "", "sport")
	slot := fs.String("slot", "", "slot label, e.g. \"09:00 - 10:00\"")
	slots := fs.String("slots", "", "comma separated slot labels")
	name := fs.String("name", "", "customer name")
	mobile := fs.String("mobile", "", "customer mobile")
	address := fs.String("address", "", "customer address")
	from := fs.String("from", "", "export start date")
	to := fs.String("to", "", "export end date")
	outPath := fs.String("out", "", "export file")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch cmd {
	case "sports":
		sports, err := c.Sports(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, sports)

	case "slots":
		views, err := c.DaySlots(ctx, *date, *sport)
		if err != nil {
			return err
		}
		for _, v := range views {
			state := "free"
			switch {
			case v.Blocked:
				state = "blocked"
			case !v.Available:
				state = "taken"
			}
			fmt.Fprintf(out, "%s  %s\n", v.Label, state)
		}
		return nil

	case "book":
		res, err := c.Book(ctx, models.BookingRequest{
			Date:     *date,
			Sport:    *sport,
			Slots:    splitCSV(*slots),
			Customer: models.Customer{Name: *name, Mobile: *mobile, Address: *address},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Summary)
		return nil

	case "admin":
		view, err := c.AdminDay(ctx, *date)
		if err != nil {
			return err
		}
		return printJSON(out, view)

	case "cancel":
		res, err := c.Cancel(ctx, models.CancelRequest{Date: *date, Slot: *slot, Sport: *sport, CustomerName: *name})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cancelled %d booking(s)\n", len(res.Cancelled))
		return nil

	case "toggle":
		state, err := c.ToggleBlock(ctx, *date, *slot)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s blocked=%t\n", state.Date, state.Slot, state.Blocked)
		return nil

	case "export":
		if *outPath == "" {
			return fmt.Errorf("-out is required")
		}
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		if err := c.Export(ctx, *from, *to, f); err != nil {
			_ = f.Close()
			_ = os.Remove(*outPath)
			return err
		}
		return f.Close()
	}

	global.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

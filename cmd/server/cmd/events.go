package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	eventsLimit     int
	eventsPage      int
	eventsCategory  string
	eventsServerURL string
	eventsFormat    string
	eventsVerbose   bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query events from a running server",
	Long: `Query the public events API and print the results.

No authentication is needed for public read access.

Examples:
  # List upcoming active events (default: 10)
  server events

  # Second page of workshops
  server events --category workshop --page 2

  # Query another server and print the raw JSON envelope
  server events --server http://events.internal:5000 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(commandContext(cmd), 15*time.Second)
		defer cancel()
		return runEventsQuery(ctx, http.DefaultClient, cmd.OutOrStdout())
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 10, "number of events per page")
	eventsCmd.Flags().IntVar(&eventsPage, "page", 1, "page number")
	eventsCmd.Flags().StringVar(&eventsCategory, "category", "", "only events in this category")
	eventsCmd.Flags().StringVar(&eventsServerURL, "server", "http://localhost:5000", "server base URL")
	eventsCmd.Flags().StringVar(&eventsFormat, "format", "table", "output format (table, json)")
	eventsCmd.Flags().BoolVarP(&eventsVerbose, "verbose", "v", false, "show detailed event information")
}

type eventListing struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Status         string  `json:"status"`
	DateTime       string  `json:"dateTime"`
	EndDateTime    string  `json:"endDateTime"`
	IsVirtual      bool    `json:"isVirtual"`
	Capacity       int     `json:"capacity"`
	AvailableSpots int     `json:"availableSpots"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	Location       struct {
		Venue string `json:"venue"`
		City  string `json:"city"`
	} `json:"location"`
}

type eventsEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func eventsQueryURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(eventsServerURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", eventsServerURL)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(eventsPage))
	q.Set("limit", strconv.Itoa(eventsLimit))
	if eventsCategory != "" {
		q.Set("category", eventsCategory)
	}
	base.Path += "/api/events"
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func runEventsQuery(ctx context.Context, client *http.Client, out io.Writer) error {
	target, err := eventsQueryURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env eventsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Message)
	}

	if eventsFormat == "json" {
		var pretty any
		if err := json.Unmarshal(body, &pretty); err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	}

	var list []eventListing
	if err := json.Unmarshal(env.Data, &list); err != nil {
		return fmt.Errorf("unexpected response format: %w", err)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No events found.")
		return err
	}

	if eventsVerbose {
		printEventDetails(out, list)
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TITLE\tCATEGORY\tSTARTS\tWHERE\tSPOTS")
		for _, e := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n",
				e.Title, e.Category, formatDate(e.DateTime), where(e), e.AvailableSpots, e.Capacity)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if p := env.Pagination; p != nil && p.Page < p.Pages {
		fmt.Fprintf(out, "\nPage %d of %d (%d events). Use --page %d for more.\n", p.Page, p.Pages, p.Total, p.Page+1)
	}
	return nil
}

func printEventDetails(out io.Writer, list []eventListing) {
	for i, e := range list {
		fmt.Fprintf(out, "%d. %s\n", i+1, e.Title)
		fmt.Fprintf(out, "   ID:          %s\n", e.ID)
		fmt.Fprintf(out, "   Category:    %s\n", e.Category)
		fmt.Fprintf(out, "   Start:       %s\n", formatDate(e.DateTime))
		if e.EndDateTime != "" {
			fmt.Fprintf(out, "   End:         %s\n", formatDate(e.EndDateTime))
		}
		fmt.Fprintf(out, "   Where:       %s\n", where(e))
		fmt.Fprintf(out, "   Spots:       %d of %d left\n", e.AvailableSpots, e.Capacity)
		if desc := e.Description; desc != "" {
			if len(desc) > 100 {
				desc = desc[:97] + "..."
			}
			fmt.Fprintf(out, "   Description: %s\n", desc)
		}
		fmt.Fprintln(out)
	}
}

func where(e eventListing) string {
	if e.IsVirtual {
		return "online"
	}
	switch {
	case e.Location.Venue != "" && e.Location.City != "":
		return e.Location.Venue + ", " + e.Location.City
	case e.Location.Venue != "":
		return e.Location.Venue
	default:
		return e.Location.City
	}
}

func formatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

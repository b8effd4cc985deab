package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace/internal/booking"
	"marketplace/internal/opportunity"
	"marketplace/pkg/authtoken"
	"marketplace/pkg/bookingclient"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
)

// devflow seeds a published opportunity and walks one booking through
// PENDING -> ACCEPTED -> PAID -> DELIVERED -> COMPLETED against a running API.
func main() {
	var (
		apiURL       = flag.String("api-url", "", "booking api base url (defaults to http://localhost<HTTP_ADDR>)")
		advertiserID = flag.String("advertiser", "adv-dev", "advertiser user id")
		publisherID  = flag.String("publisher", "pub-dev", "publisher user id")
		price        = flag.String("price", "150.00", "opportunity base price")
		currency     = flag.String("currency", "USD", "opportunity currency")
		dispute      = flag.String("dispute", "", "dispute with this reason instead of approving")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "missing JWT_SECRET (env or .env); devflow signs tokens with it")
		os.Exit(2)
	}
	basePrice, err := decimal.NewFromString(*price)
	if err != nil || !basePrice.IsPositive() {
		fmt.Fprintf(os.Stderr, "invalid -price %q\n", *price)
		os.Exit(2)
	}
	if *apiURL == "" {
		*apiURL = defaultAPIURL(cfg.HTTPAddr)
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	now := time.Now().UTC()
	from := now
	to := now.Add(90 * 24 * time.Hour)
	opp, err := opportunity.NewRepository(pool).Upsert(ctx, opportunity.Opportunity{
		ID:            uuid.NewString(),
		PublisherID:   *publisherID,
		Title:         "Devflow homepage banner",
		PlacementType: "BANNER",
		BasePrice:     basePrice,
		Currency:      strings.ToUpper(*currency),
		Status:        opportunity.StatusPublished,
		AvailableFrom: &from,
		AvailableTo:   &to,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed opportunity: %v\n", err)
		os.Exit(1)
	}

	advertiser := client(cfg, *apiURL, *advertiserID, booking.RoleAdvertiser, now)
	publisher := client(cfg, *apiURL, *publisherID, booking.RolePublisher, now)

	created, err := advertiser.Create(ctx, booking.CreateRequest{
		OpportunityID:  opp.ID,
		RequestedStart: now.Add(24 * time.Hour),
		RequestedEnd:   now.Add(8 * 24 * time.Hour),
		Notes:          "created by devflow",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create booking: %v\n", err)
		fmt.Fprintf(os.Stderr, "tip: is the API running, and is HTTP_ADDR set correctly? api_url=%s\n", *apiURL)
		os.Exit(1)
	}
	fmt.Printf("booking_id=%s status=%s price=%s %s\n", created.ID, created.Status, created.SelectedPrice.StringFixed(2), created.Currency)

	view := bookingclient.NewView(*created)
	steps := []step{
		{publisher, bookingclient.Request{Action: booking.ActionAccept}},
		{advertiser, bookingclient.Request{Action: booking.ActionPay}},
		{publisher, bookingclient.Request{Action: booking.ActionDeliver, Payload: booking.Payload{
			DeliveredFiles: []string{"https://cdn.example.com/devflow/banner-728x90.png"},
			DeliveredNotes: "Final creative",
		}}},
	}
	if *dispute != "" {
		steps = append(steps, step{advertiser, bookingclient.Request{Action: booking.ActionDispute, Payload: booking.Payload{DisputeReason: *dispute}}})
	} else {
		steps = append(steps, step{advertiser, bookingclient.Request{Action: booking.ActionApprove}})
	}

	for _, s := range steps {
		before := view.Booking().Status
		if err := view.Apply(ctx, s.as, s.req); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed in %s: %s\n", s.req.Action, before, view.LastError())
			os.Exit(1)
		}
		b := view.Booking()
		fmt.Printf("  %-8s %s -> %s (payment=%s)\n", s.req.Action, before, b.Status, b.PaymentStatus)
	}

	// A replayed transition must be refused by the server.
	if err := view.Apply(ctx, publisher, bookingclient.Request{Action: booking.ActionAccept}); err == nil {
		fmt.Fprintln(os.Stderr, "expected replayed ACCEPT to be rejected")
		os.Exit(1)
	}
	fmt.Printf("replayed ACCEPT rejected: %s\n", view.LastError())
	fmt.Printf("final status=%s\n", view.Booking().Status)
}

type step struct {
	as  bookingclient.Client
	req bookingclient.Request
}

func client(cfg config.Config, baseURL, userID string, role booking.Role, now time.Time) bookingclient.Client {
	tok, err := authtoken.Issue(cfg.JWT.Secret, cfg.JWT.Issuer, userID, string(role), time.Hour, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token for %s: %v\n", userID, err)
		os.Exit(1)
	}
	return bookingclient.Client{BaseURL: baseURL, Token: tok}
}

func defaultAPIURL(httpAddr string) string {
	// httpAddr is typically ":8081" or "0.0.0.0:8081".
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		addr = ":8081"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + addr
}

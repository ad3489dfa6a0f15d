package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

func TestTrackClickSetsAttributionCookies(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "SUMMER20", domain.AffiliateStatusActive)
	jar := newMemJar()

	out, err := f.svc.TrackClick(context.Background(), TrackClickInput{Code: "SUMMER20", ClientIP: "203.0.113.9", UserAgent: "Mozilla/5.0"}, jar)
	if err != nil {
		t.Fatalf("track click: %v", err)
	}
	if out.Click.ClickID == "" {
		t.Fatalf("expected click id")
	}
	if v, ok := jar.Get("aff_ref"); !ok || v == "" {
		t.Fatalf("attribution cookie not set")
	}
	if v, ok := jar.Get("aff_click_id"); !ok || v != out.Click.ClickID {
		t.Fatalf("click cookie not set, got %q", v)
	}

	aff, clickID, ok := f.svc.ResolveAttribution(context.Background(), jar)
	if !ok {
		t.Fatalf("expected attribution to resolve")
	}
	if aff.AffiliateID != "aff-1" || clickID != out.Click.ClickID {
		t.Fatalf("resolved wrong attribution: %s / %s", aff.AffiliateID, clickID)
	}

	feed := f.analytics.records()
	if len(feed) != 1 || feed[0].EventType != domain.EventClickTracked {
		t.Fatalf("click must land on the analytics feed, got %d records", len(feed))
	}
	if len(f.outbox.records()) != 0 {
		t.Fatal("click analytics must not occupy the outbox")
	}
}

func TestTrackClickLastTouchOverwrites(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "FIRST-REF", domain.AffiliateStatusActive)
	f.seedAffiliate("aff-2", "SECOND-REF", domain.AffiliateStatusActive)
	jar := newMemJar()
	ctx := context.Background()

	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "FIRST-REF"}, jar); err != nil {
		t.Fatalf("first track: %v", err)
	}
	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "SECOND-REF"}, jar); err != nil {
		t.Fatalf("second track: %v", err)
	}

	aff, _, ok := f.svc.ResolveAttribution(ctx, jar)
	if !ok || aff.AffiliateID != "aff-2" {
		t.Fatalf("expected last touch to win, got %s (ok=%v)", aff.AffiliateID, ok)
	}
}

func TestTrackClickRejectsUnknownAndInactiveCodes(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "PAUSED1", domain.AffiliateStatusSuspended)
	ctx := context.Background()

	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "NOPE404"}, newMemJar()); !errors.Is(err, domain.ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "PAUSED1"}, newMemJar()); !errors.Is(err, domain.ErrAffiliateNotActive) {
		t.Fatalf("expected ErrAffiliateNotActive, got %v", err)
	}
}

func TestResolveAttributionExpiredCookie(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "WINDOW30", domain.AffiliateStatusActive)
	jar := newMemJar()
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.nowFn = func() time.Time { return start }
	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "WINDOW30"}, jar); err != nil {
		t.Fatalf("track click: %v", err)
	}

	f.svc.nowFn = func() time.Time { return start.Add(29 * 24 * time.Hour) }
	if _, _, ok := f.svc.ResolveAttribution(ctx, jar); !ok {
		t.Fatalf("cookie should still resolve inside the window")
	}

	f.svc.nowFn = func() time.Time { return start.Add(31 * 24 * time.Hour) }
	if _, _, ok := f.svc.ResolveAttribution(ctx, jar); ok {
		t.Fatalf("cookie should not resolve past the window")
	}
}

func TestSummaryAggregatesClicksAndLedger(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "STATS001", domain.AffiliateStatusActive)
	ctx := context.Background()

	first, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "STATS001"}, newMemJar())
	if err != nil {
		t.Fatalf("track click: %v", err)
	}
	if _, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "STATS001"}, newMemJar()); err != nil {
		t.Fatalf("track click: %v", err)
	}
	_ = f.clicks.MarkConverted(ctx, first.Click.ClickID, time.Now().UTC())
	f.seedApprovedCommission("com-1", "aff-1", "ord-1", 25)

	summary, err := f.svc.Summary(ctx, Actor{SubjectID: "aff-1", Role: "affiliate"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalClicks != 2 || summary.ConvertedClicks != 1 {
		t.Fatalf("unexpected click counts: %d / %d", summary.TotalClicks, summary.ConvertedClicks)
	}
	if summary.ConversionRate != 50 {
		t.Fatalf("expected 50%% conversion, got %f", summary.ConversionRate)
	}
	if summary.ApprovedAmount != 25 {
		t.Fatalf("expected 25 approved, got %f", summary.ApprovedAmount)
	}
}

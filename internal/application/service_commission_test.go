package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

func TestCreateCommissionForOrderIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "REFCODE1", domain.AffiliateStatusActive)
	ctx := context.Background()
	order := ports.OrderSnapshot{OrderID: "ord-1", AffiliateID: "aff-1", Total: 200, Currency: "usd"}

	first, created, err := f.svc.CreateCommissionForOrder(ctx, order, "")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create")
	}
	if first.Amount != 20 {
		t.Fatalf("expected 10%% of 200 = 20, got %f", first.Amount)
	}
	if first.Currency != "USD" {
		t.Fatalf("expected normalized currency, got %s", first.Currency)
	}

	second, created, err := f.svc.CreateCommissionForOrder(ctx, order, "")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created || second.CommissionID != first.CommissionID {
		t.Fatalf("expected same commission on replay, got %s vs %s", second.CommissionID, first.CommissionID)
	}
}

func TestCreateCommissionConcurrentTriggersYieldOneRow(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "REFCODE2", domain.AffiliateStatusActive)
	order := ports.OrderSnapshot{OrderID: "ord-race", AffiliateID: "aff-1", Total: 200}

	// N simultaneous triggers race past the pre-check into the unique-index
	// conflict; losers must re-read the winner's row, never error.
	const callers = 8
	rows := make([]domain.Commission, callers)
	createdFlags := make([]bool, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows[i], createdFlags[i], errs[i] = f.svc.CreateCommissionForOrder(context.Background(), order, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	commissionID := ""
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if createdFlags[i] {
			winners++
		}
		if commissionID == "" {
			commissionID = rows[i].CommissionID
		} else if rows[i].CommissionID != commissionID {
			t.Fatalf("callers observed different commissions: %s vs %s", commissionID, rows[i].CommissionID)
		}
	}
	if winners != 1 {
		t.Fatalf("creators = %d, want exactly 1", winners)
	}

	all, total, err := f.commissions.List(context.Background(), ports.CommissionQuery{Limit: callers})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(all) != 1 {
		t.Fatalf("rows = %d (total %d), want exactly one commission for the order", len(all), total)
	}
}

func TestCreateCommissionLicensedAffiliateEarnsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture()
	aff := f.seedAffiliate("aff-lic", "LICENSED", domain.AffiliateStatusActive)
	aff.Class = domain.AffiliateClassLicensed
	_ = f.affiliates.Update(context.Background(), aff)

	row, created, err := f.svc.CreateCommissionForOrder(context.Background(), ports.OrderSnapshot{OrderID: "ord-lic", AffiliateID: "aff-lic", Total: 500}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created || row.CommissionID != "" {
		t.Fatalf("licensed affiliate must not earn a commission")
	}
}

func TestCreateCommissionMarksClickConverted(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "CONV1234", domain.AffiliateStatusActive)
	ctx := context.Background()

	click, err := f.svc.TrackClick(ctx, TrackClickInput{Code: "CONV1234"}, newMemJar())
	if err != nil {
		t.Fatalf("track click: %v", err)
	}
	if _, _, err := f.svc.CreateCommissionForOrder(ctx, ports.OrderSnapshot{OrderID: "ord-1", AffiliateID: "aff-1", Total: 80}, click.Click.ClickID); err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, err := f.clicks.GetByID(ctx, click.Click.ClickID)
	if err != nil {
		t.Fatalf("get click: %v", err)
	}
	if !stored.Converted {
		t.Fatalf("expected click marked converted")
	}
}

func TestApproveCommissionIsOperatorOnlyAndRepeatSafe(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "APPR0001", domain.AffiliateStatusActive)
	ctx := context.Background()
	row, _, err := f.svc.CreateCommissionForOrder(ctx, ports.OrderSnapshot{OrderID: "ord-1", AffiliateID: "aff-1", Total: 100}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.ApproveCommission(ctx, Actor{SubjectID: "aff-1", Role: "affiliate"}, row.CommissionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-operator, got %v", err)
	}

	operator := Actor{SubjectID: "op-1", Role: "operator"}
	approved, err := f.svc.ApproveCommission(ctx, operator, row.CommissionID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.CommissionStatusApproved || approved.ApprovedAt == nil {
		t.Fatalf("expected approved with timestamp, got %s", approved.Status)
	}

	again, err := f.svc.ApproveCommission(ctx, operator, row.CommissionID)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if again.Status != domain.CommissionStatusApproved {
		t.Fatalf("double approval must be a no-op, got %s", again.Status)
	}
}

func TestApproveCancelledCommissionFails(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "CANCE001", domain.AffiliateStatusActive)
	ctx := context.Background()
	operator := Actor{SubjectID: "op-1", Role: "operator"}
	row, _, _ := f.svc.CreateCommissionForOrder(ctx, ports.OrderSnapshot{OrderID: "ord-1", AffiliateID: "aff-1", Total: 100}, "")

	if _, err := f.svc.CancelCommission(ctx, operator, row.CommissionID, "fraud check"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.ApproveCommission(ctx, operator, row.CommissionID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMarkPaidManuallyRequiresProofAndKey(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "MANUAL01", domain.AffiliateStatusActive)
	row := f.seedApprovedCommission("com-1", "aff-1", "ord-1", 30)
	ctx := context.Background()

	noKey := Actor{SubjectID: "op-1", Role: "operator"}
	if _, err := f.svc.MarkPaidManually(ctx, noKey, row.CommissionID, "bank-ref-9", ""); !errors.Is(err, domain.ErrIdempotencyRequired) {
		t.Fatalf("expected ErrIdempotencyRequired, got %v", err)
	}

	operator := Actor{SubjectID: "op-1", Role: "operator", IdempotencyKey: "idem-paid-1"}
	if _, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "   ", ""); !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected proof to be mandatory, got %v", err)
	}

	// A different request under an already reserved key is a conflict.
	if _, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "bank-ref-9", ""); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict on reused key, got %v", err)
	}

	operator.IdempotencyKey = "idem-paid-1b"
	paid, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "bank-ref-9", "settled via wire")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != domain.CommissionStatusPaid || paid.ProofRef != "bank-ref-9" || paid.Method != domain.RailManual {
		t.Fatalf("unexpected paid row: %+v", paid)
	}
	if paid.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}
}

func TestMarkPaidManuallyReplaysOnSameKey(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "MANUAL02", domain.AffiliateStatusActive)
	row := f.seedApprovedCommission("com-1", "aff-1", "ord-1", 30)
	ctx := context.Background()
	operator := Actor{SubjectID: "op-1", Role: "operator", IdempotencyKey: "idem-paid-2"}

	first, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "pix-777", "")
	if err != nil {
		t.Fatalf("first mark paid: %v", err)
	}
	second, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "pix-777", "")
	if err != nil {
		t.Fatalf("replay mark paid: %v", err)
	}
	if second.CommissionID != first.CommissionID || second.ProofRef != first.ProofRef {
		t.Fatalf("replay returned a different result")
	}
	attempts, _ := f.payoutAttempts.ListByCommissionID(ctx, row.CommissionID)
	if len(attempts) != 1 {
		t.Fatalf("expected exactly one recorded attempt, got %d", len(attempts))
	}
}

func TestListCommissionsScopesNonOperators(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "SCOPE001", domain.AffiliateStatusActive)
	f.seedAffiliate("aff-2", "SCOPE002", domain.AffiliateStatusActive)
	f.seedApprovedCommission("com-1", "aff-1", "ord-1", 10)
	f.seedApprovedCommission("com-2", "aff-2", "ord-2", 20)
	ctx := context.Background()

	mine, _, err := f.svc.ListCommissions(ctx, Actor{SubjectID: "aff-1", Role: "affiliate"}, ports.CommissionQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].AffiliateID != "aff-1" {
		t.Fatalf("affiliate must only see own rows, got %d", len(mine))
	}

	all, _, err := f.svc.ListCommissions(ctx, Actor{SubjectID: "op-1", Role: "operator"}, ports.CommissionQuery{})
	if err != nil {
		t.Fatalf("operator list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("operator should see all rows, got %d", len(all))
	}
}

func TestGetCommissionForbidsOtherAffiliates(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "GETC0001", domain.AffiliateStatusActive)
	row := f.seedApprovedCommission("com-1", "aff-1", "ord-1", 10)

	if _, err := f.svc.GetCommission(context.Background(), Actor{SubjectID: "aff-2", Role: "affiliate"}, row.CommissionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

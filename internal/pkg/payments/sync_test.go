package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coachfit/app/models"
)

func newSyncFixture() (*fakeRepo, *fakeGateway, *SyncEngine) {
	repo := newFakeRepo()
	gw := newFakeGateway()
	return repo, gw, NewSyncEngine(repo, gw)
}

func guestRemote(id, token string) *ProviderSubscription {
	remote := &ProviderSubscription{
		ID:                 id,
		Customer:           "cus_guest",
		Status:             "trialing",
		CurrentPeriodStart: 1_700_000_000,
		CurrentPeriodEnd:   1_702_592_000,
		TrialStart:         1_700_000_000,
		TrialEnd:           1_700_259_200,
		Metadata: map[string]string{
			MetadataInvitationToken: token,
			MetadataCoachID:         "1",
		},
	}
	remote.Items.Data = []SubscriptionItem{{
		Price: Price{
			ID:         "price_1",
			UnitAmount: 30000,
			Currency:   "brl",
			Recurring:  &Recurring{Interval: models.BillingIntervalMonth},
		},
	}}
	return remote
}

func TestSyncOne_GuestSubscription(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	key := models.InvitationPendingKey(1, "maria@example.com")
	repo.addInvitation(models.PaymentInvitation{
		Token:        "tok_1",
		CoachID:      1,
		StudentEmail: "maria@example.com",
		Status:       models.InvitationStatusPending,
		PendingKey:   &key,
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	repo.addUser(models.User{ID: 7, Email: "maria@example.com", Role: models.ROLE_STUDENT})
	gw.subs["sub_1"] = guestRemote("sub_1", "tok_1")

	sub, err := engine.SyncOne(context.Background(), "acct_coach", "sub_1")
	if err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}

	if sub.CoachID != 1 || sub.InvitationToken != "tok_1" {
		t.Fatalf("attribution wrong: %+v", sub)
	}
	if sub.Status != models.SubscriptionStatusTrialing {
		t.Fatalf("status = %q, want trialing", sub.Status)
	}
	if sub.AmountCents != 30000 || sub.BillingInterval != models.BillingIntervalMonth {
		t.Fatalf("price mapping wrong: %+v", sub)
	}
	if sub.TrialEnd == nil || sub.TrialEnd.Unix() != 1_700_259_200 {
		t.Fatalf("trial end mapping wrong: %v", sub.TrialEnd)
	}
	if sub.StudentID == nil || *sub.StudentID != 7 {
		t.Fatalf("student linkage wrong: %v", sub.StudentID)
	}
	if sub.RawPayloadJSON == "" {
		t.Fatalf("raw payload must be retained")
	}

	// Side effects: invitation completed, coach-student link active.
	inv, _ := repo.GetInvitationByToken("tok_1")
	if inv.Status != models.InvitationStatusCompleted {
		t.Fatalf("invitation status = %q, want completed", inv.Status)
	}
	if got := repo.coachStudents[[2]uint{1, 7}]; got != models.CoachStudentActive {
		t.Fatalf("coach-student link = %q, want active", got)
	}
}

func TestSyncOne_Idempotent(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	key := models.InvitationPendingKey(1, "maria@example.com")
	repo.addInvitation(models.PaymentInvitation{
		Token:        "tok_1",
		CoachID:      1,
		StudentEmail: "maria@example.com",
		Status:       models.InvitationStatusPending,
		PendingKey:   &key,
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	gw.subs["sub_1"] = guestRemote("sub_1", "tok_1")

	first, err := engine.SyncOne(context.Background(), "", "sub_1")
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	second, err := engine.SyncOne(context.Background(), "", "sub_1")
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if len(repo.subs) != 1 {
		t.Fatalf("replay created %d rows, want 1", len(repo.subs))
	}
	if first.ID != second.ID {
		t.Fatalf("replay must hit the same row: %d vs %d", first.ID, second.ID)
	}
	if second.Status != first.Status || second.AmountCents != first.AmountCents {
		t.Fatalf("replay changed the row: %+v vs %+v", first, second)
	}
}

func TestSyncOne_ProviderStateWins(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	gw.subs["sub_1"] = guestRemote("sub_1", "")
	gw.subs["sub_1"].Metadata = map[string]string{MetadataCoachID: "1"}
	gw.subs["sub_1"].Status = "past_due"

	// Seed a stale local row claiming the subscription is fine.
	repo.UpsertSubscription(&models.Subscription{
		ProviderSubscriptionID: "sub_1",
		CoachID:                1,
		Status:                 models.SubscriptionStatusActive,
		AmountCents:            111,
	})

	sub, err := engine.SyncOne(context.Background(), "", "sub_1")
	if err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}
	if sub.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("provider state must overwrite the ledger, got %q", sub.Status)
	}
	if sub.AmountCents != 30000 {
		t.Fatalf("amount must come from the provider, got %d", sub.AmountCents)
	}
}

func TestSyncOne_ProviderFetchFails(t *testing.T) {
	_, gw, engine := newSyncFixture()
	gw.err = ErrProviderUnavailable

	if _, err := engine.SyncOne(context.Background(), "", "sub_1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected provider error to surface, got %v", err)
	}
}

func TestSyncOne_UnattributableSubscription(t *testing.T) {
	_, gw, engine := newSyncFixture()
	gw.subs["sub_x"] = &ProviderSubscription{ID: "sub_x", Status: "active"}

	if _, err := engine.SyncOne(context.Background(), "", "sub_x"); err == nil {
		t.Fatalf("expected attribution error for unknown subscription")
	}
}

func TestSyncOne_CoachResolvedFromInvitation(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	key := models.InvitationPendingKey(3, "joao@example.com")
	repo.addInvitation(models.PaymentInvitation{
		Token:        "tok_j",
		CoachID:      3,
		StudentEmail: "joao@example.com",
		Status:       models.InvitationStatusPending,
		PendingKey:   &key,
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	remote := guestRemote("sub_j", "tok_j")
	delete(remote.Metadata, MetadataCoachID)
	gw.subs["sub_j"] = remote

	sub, err := engine.SyncOne(context.Background(), "", "sub_j")
	if err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}
	if sub.CoachID != 3 {
		t.Fatalf("coach must resolve through the invitation, got %d", sub.CoachID)
	}
}

func TestSyncOne_SeatMirroredOntoCoachAccount(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	repo.addAccount(models.CoachAccount{UserID: 1, ProviderCustomerID: "cus_coach"})
	remote := &ProviderSubscription{
		ID:       "sub_seat",
		Customer: "cus_coach",
		Status:   "active",
		Metadata: map[string]string{MetadataSeat: "true", MetadataCoachID: "1"},
	}
	gw.subs["sub_seat"] = remote

	if _, err := engine.SyncOne(context.Background(), "", "sub_seat"); err != nil {
		t.Fatalf("SyncOne failed: %v", err)
	}

	account, _ := repo.GetCoachAccountByUserID(1)
	if account.PlatformSubscriptionID != "sub_seat" {
		t.Fatalf("seat id not mirrored: %+v", account)
	}
	if account.PlatformSubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("seat status not mirrored: %+v", account)
	}
	if !account.HasActiveSeat() {
		t.Fatalf("mirrored seat must grant access")
	}
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusUnpaid},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "incomplete_expired", want: models.SubscriptionStatusCanceled},
		{in: "paused", want: models.SubscriptionStatusUnpaid},
		{in: "incomplete", want: models.SubscriptionStatusPastDue},
		{in: "something_new", want: models.SubscriptionStatusPastDue},
	}

	for _, tt := range tests {
		if got := mapProviderStatus(tt.in); got != tt.want {
			t.Fatalf("mapProviderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSyncFromCheckoutSession(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	key := models.InvitationPendingKey(1, "maria@example.com")
	repo.addInvitation(models.PaymentInvitation{
		Token:        "tok_1",
		CoachID:      1,
		StudentEmail: "maria@example.com",
		Status:       models.InvitationStatusPending,
		PendingKey:   &key,
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	gw.subs["sub_1"] = guestRemote("sub_1", "tok_1")
	gw.sessions["cs_1"] = &CheckoutSession{ID: "cs_1", Status: "complete", Subscription: "sub_1"}
	gw.sessions["cs_open"] = &CheckoutSession{ID: "cs_open", Status: "open"}

	sub, err := engine.SyncFromCheckoutSession(context.Background(), "acct_coach", "cs_1")
	if err != nil {
		t.Fatalf("SyncFromCheckoutSession failed: %v", err)
	}
	if sub.ProviderSubscriptionID != "sub_1" {
		t.Fatalf("wrong subscription synced: %+v", sub)
	}

	if _, err := engine.SyncFromCheckoutSession(context.Background(), "", "cs_open"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session without subscription must report ErrNotFound, got %v", err)
	}
}

func TestSyncAllForCoach(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	repo.addAccount(models.CoachAccount{
		UserID:               1,
		ProviderCustomerID:   "cus_coach",
		SubMerchantAccountID: "acct_coach",
	})
	key := models.InvitationPendingKey(1, "maria@example.com")
	repo.addInvitation(models.PaymentInvitation{
		Token:        "tok_1",
		CoachID:      1,
		StudentEmail: "maria@example.com",
		Status:       models.InvitationStatusPending,
		PendingKey:   &key,
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	gw.subs["sub_seat"] = &ProviderSubscription{
		ID:       "sub_seat",
		Customer: "cus_coach",
		Status:   "active",
		Metadata: map[string]string{MetadataSeat: "true", MetadataCoachID: "1"},
	}
	gw.subs["sub_student"] = guestRemote("sub_student", "tok_1")

	if err := engine.SyncAllForCoach(context.Background(), 1); err != nil {
		t.Fatalf("SyncAllForCoach failed: %v", err)
	}

	if len(repo.subs) != 2 {
		t.Fatalf("expected both sides synced, got %d rows", len(repo.subs))
	}
	account, _ := repo.GetCoachAccountByUserID(1)
	if !account.HasActiveSeat() {
		t.Fatalf("seat must be mirrored during full resync")
	}

	if err := engine.SyncAllForCoach(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown coach must report ErrNotFound, got %v", err)
	}
}

func TestSyncOne_ConcurrentDeliveriesConverge(t *testing.T) {
	repo, gw, engine := newSyncFixture()
	seedGuestSubscription(repo, gw)

	// Redeliveries race in production; the upsert keyed on the unique
	// provider subscription id keeps them on one row.
	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.SyncOne(context.Background(), "acct_coach", "sub_1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("SyncOne %d failed: %v", i, errs[i])
		}
	}
	if len(repo.subs) != 1 {
		t.Fatalf("got %d ledger rows, want 1", len(repo.subs))
	}
	if got := repo.subs["sub_1"]; got.ID != 1 {
		t.Fatalf("racing syncs allocated extra rows: id = %d", got.ID)
	}
}

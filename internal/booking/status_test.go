package booking

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthorize_RoleActionTable(t *testing.T) {
	allowed := map[Role]map[Action]bool{
		RolePublisher:  {ActionAccept: true, ActionReject: true, ActionDeliver: true},
		RoleAdvertiser: {ActionPay: true, ActionApprove: true, ActionDispute: true},
		RoleAdmin: {
			ActionAccept: true, ActionReject: true, ActionPay: true, ActionDeliver: true,
			ActionApprove: true, ActionDispute: true, ActionCancel: true,
		},
	}
	for _, role := range AllRoles {
		for _, action := range AllActions {
			want := allowed[role][action]
			if got := Authorize(role, action); got != want {
				t.Fatalf("Authorize(%s, %s) = %v, want %v", role, action, got, want)
			}
		}
	}
}

func TestAuthorize_UnknownDenied(t *testing.T) {
	if Authorize(Role("GUEST"), ActionAccept) {
		t.Fatalf("expected unknown role denied")
	}
	if Authorize(RoleAdmin, Action("REFUND")) {
		t.Fatalf("expected unknown action denied for admin")
	}
}

func TestNextStatus_TableRows(t *testing.T) {
	rows := map[edge]Status{
		{StatusPending, ActionAccept}:    StatusAccepted,
		{StatusPending, ActionReject}:    StatusCancelled,
		{StatusAccepted, ActionPay}:      StatusPaid,
		{StatusPaid, ActionDeliver}:      StatusDelivered,
		{StatusDelivered, ActionApprove}: StatusCompleted,
		{StatusDelivered, ActionDispute}: StatusDisputed,
	}
	for _, s := range AllStatuses {
		for _, a := range AllActions {
			want, wantOK := rows[edge{s, a}]
			got, ok := NextStatus(s, a)
			if ok != wantOK || got != want {
				t.Fatalf("NextStatus(%s, %s) = %q,%v want %q,%v", s, a, got, ok, want, wantOK)
			}
		}
	}
}

func TestTerminalStatusesHaveNoActions(t *testing.T) {
	for _, s := range AllStatuses {
		if s.Terminal() && len(ActionsFrom(s)) != 0 {
			t.Fatalf("terminal %s has actions %v", s, ActionsFrom(s))
		}
	}
	if got := ActionsFrom(StatusInProgress); len(got) != 0 {
		t.Fatalf("expected IN_PROGRESS to have no actions, got %v", got)
	}
	if got := ActionsFrom(StatusDelivered); len(got) != 2 || got[0] != ActionApprove || got[1] != ActionDispute {
		t.Fatalf("unexpected DELIVERED actions %v", got)
	}
}

func TestParse_RejectsUnknown(t *testing.T) {
	if _, err := ParseAction("accept"); err == nil {
		t.Fatalf("expected lowercase action rejected")
	}
	if _, err := ParseStatus("DONE"); err == nil {
		t.Fatalf("expected unknown status rejected")
	}
	if r, err := ParseRole("PUBLISHER"); err != nil || r != RolePublisher {
		t.Fatalf("ParseRole: %v %v", r, err)
	}
}

func TestDecide_UnlistedPairsAreInvalidTransition(t *testing.T) {
	p := Payload{DeliveredFiles: []string{"https://cdn.example.com/a.png"}, DisputeReason: "late"}
	for _, s := range AllStatuses {
		for _, a := range AllActions {
			_, err := Decide(s, a, p)
			if _, ok := NextStatus(s, a); ok {
				if err != nil {
					t.Fatalf("Decide(%s, %s): unexpected error %v", s, a, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("Decide(%s, %s): expected InvalidTransition, got %v", s, a, err)
			}
		}
	}
}

func TestDecide_RowLookupBeforePayloadValidation(t *testing.T) {
	_, err := Decide(StatusPending, ActionDeliver, Payload{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestDecide_DeliverValidatesFiles(t *testing.T) {
	cases := map[string][]string{
		"empty":    nil,
		"blank":    {"   "},
		"relative": {"files/a.png"},
		"no host":  {"file:///tmp/a.png"},
	}
	for name, files := range cases {
		_, err := Decide(StatusPaid, ActionDeliver, Payload{DeliveredFiles: files})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}

	out, err := Decide(StatusPaid, ActionDeliver, Payload{
		DeliveredFiles: []string{" https://cdn.example.com/banner.png "},
		DeliveredNotes: "  final cut ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.To != StatusDelivered || len(out.DeliveredFiles) != 1 || out.DeliveredFiles[0] != "https://cdn.example.com/banner.png" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.DeliveredNotes == nil || *out.DeliveredNotes != "final cut" {
		t.Fatalf("expected trimmed notes, got %v", out.DeliveredNotes)
	}
}

func TestDecide_DisputeNeedsReason(t *testing.T) {
	if _, err := Decide(StatusDelivered, ActionDispute, Payload{DisputeReason: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	out, err := Decide(StatusDelivered, ActionDispute, Payload{DisputeReason: "wrong banner size"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.DisputeReason == nil || *out.DisputeReason != "wrong banner size" {
		t.Fatalf("unexpected reason %v", out.DisputeReason)
	}
}

func TestOutcomeApply_AppendsFiles(t *testing.T) {
	b := sampleBooking("b1", StatusPaid)
	b.DeliveredFiles = []string{"https://cdn.example.com/draft.png"}
	out, err := Decide(StatusPaid, ActionDeliver, Payload{DeliveredFiles: []string{"https://cdn.example.com/final.png"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := out.Apply(b, fixedNow)
	if len(got.DeliveredFiles) != 2 || got.DeliveredFiles[1] != "https://cdn.example.com/final.png" {
		t.Fatalf("unexpected files %v", got.DeliveredFiles)
	}
	if len(b.DeliveredFiles) != 1 {
		t.Fatalf("Apply mutated the input booking")
	}
}

func TestIsParticipant_RoleConsistent(t *testing.T) {
	b := sampleBooking("b1", StatusPending)
	if !b.IsParticipant(advertiser) || !b.IsParticipant(publisher) || !b.IsParticipant(admin) {
		t.Fatalf("expected parties and admin to be participants")
	}
	// The advertiser's id presented under the publisher role is not this booking's publisher.
	if b.IsParticipant(Actor{ID: advertiser.ID, Role: RolePublisher}) {
		t.Fatalf("expected role mismatch to be rejected")
	}
	if b.IsParticipant(Actor{ID: "someone-else", Role: RoleAdvertiser}) {
		t.Fatalf("expected stranger to be rejected")
	}
}

func TestDecide_DeliverCapsFileCount(t *testing.T) {
	files := make([]string, maxDeliveredFiles+1)
	for i := range files {
		files[i] = fmt.Sprintf("https://cdn.example.com/%d.png", i)
	}
	if _, err := Decide(StatusPaid, ActionDeliver, Payload{DeliveredFiles: files}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := Decide(StatusPaid, ActionDeliver, Payload{DeliveredFiles: files[:maxDeliveredFiles]}); err != nil {
		t.Fatalf("expected %d files accepted, got %v", maxDeliveredFiles, err)
	}
}

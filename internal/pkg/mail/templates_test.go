package mail

import (
	"strings"
	"testing"
	"time"
)

func TestRenderSyncSummary(t *testing.T) {
	body, err := RenderSyncSummary(SyncSummaryView{
		RunID:    "7b1f2a9c",
		Status:   "partial",
		Found:    10,
		Inserted: 6,
		Updated:  2,
		Errors:   []string{"record 24-3: store write failed", "record 24-7: store write failed"},
		Duration: 3 * time.Second,
		RunAt:    time.Date(2024, 6, 15, 8, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RenderSyncSummary() error = %v", err)
	}

	for _, want := range []string{
		"7b1f2a9c",
		"partial",
		"15/06/2024 08:30",
		"Annonces trouvées : 10",
		"Créées : 6",
		"Mises à jour : 2",
		"Erreurs (2)",
		"record 24-3",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("summary body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderSyncSummaryWithoutErrors(t *testing.T) {
	body, err := RenderSyncSummary(SyncSummaryView{
		RunID:  "abc",
		Status: "success",
		RunAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("RenderSyncSummary() error = %v", err)
	}
	if strings.Contains(body, "Erreurs") {
		t.Fatalf("error section must be omitted for a clean run:\n%s", body)
	}
}

func TestRenderPostFailureAlert(t *testing.T) {
	body, err := RenderPostFailureAlert(PostFailureAlertView{
		PostID: "post-1",
		Text:   "Nouveau marché publié",
		Failures: map[string]string{
			"facebook": "provider returned 502",
		},
	})
	if err != nil {
		t.Fatalf("RenderPostFailureAlert() error = %v", err)
	}
	for _, want := range []string{"post-1", "Nouveau marché publié", "facebook", "502"} {
		if !strings.Contains(body, want) {
			t.Fatalf("alert body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderPostFailureAlertEscapesHTML(t *testing.T) {
	body, err := RenderPostFailureAlert(PostFailureAlertView{
		PostID: "post-1",
		Text:   `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("RenderPostFailureAlert() error = %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("user text must be HTML-escaped:\n%s", body)
	}
}

func TestRenderBillingAlert(t *testing.T) {
	body, err := RenderBillingAlert(BillingAlertView{
		EventID:   "evt_1",
		EventType: "checkout.session.completed",
		Error:     "no plan mapped to provider price: price=price_x",
	})
	if err != nil {
		t.Fatalf("RenderBillingAlert() error = %v", err)
	}
	for _, want := range []string{"evt_1", "checkout.session.completed", "price_x"} {
		if !strings.Contains(body, want) {
			t.Fatalf("billing alert missing %q:\n%s", want, body)
		}
	}
}

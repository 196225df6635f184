package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
)

// Covers the whole mutation-to-webhook path: a committed store write fires
// the hook, the publisher matches and enqueues, the queue dispatches, and
// the worker posts a signed payload the receiver can verify.
func TestPipeline_CreateToDelivery(t *testing.T) {
	type received struct {
		body []byte
		sig  string
	}
	got := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, sig: r.Header.Get(HeaderSignature)}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := subscription.NewRepoMem()
	sub := insertActiveSubscription(t, repo, server.URL)
	registry := newRegistry(repo)
	attempts := NewMemAttemptStore()
	worker := NewWorker(registry, attempts, zerolog.Nop(), time.Second)
	queue := NewQueue(16, worker.Run, zerolog.Nop())
	queue.Start(context.Background())
	defer queue.Stop()

	store := core.NewMemStore()
	store.SetMutationHook(NewPublisher(registry, attempts, queue, zerolog.Nop()).Publish)

	created, err := store.Create(context.Background(), &core.Patient{
		Meta:   core.Meta{TenantID: "t1"},
		Active: true,
		Family: "Doe",
		Given:  []string{"Jane"},
		Gender: core.GenderFemale,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var delivery received
	select {
	case delivery = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the webhook delivery")
	}

	if !VerifySignature(delivery.body, sub.Channel.Secret, strings.TrimPrefix(delivery.sig, "sha256=")) {
		t.Error("delivered payload failed signature verification")
	}

	var payload struct {
		Mutation string `json:"mutation"`
		Resource struct {
			ResourceType string `json:"resourceType"`
			ID           string `json:"id"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(delivery.body, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.Mutation != "create" || payload.Resource.ResourceType != "Patient" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Resource.ID != "1" {
		t.Errorf("resource id = %q, want the store-assigned 1", payload.Resource.ID)
	}
	if created.ResourceMeta().Version != 1 {
		t.Errorf("created version = %d, want 1", created.ResourceMeta().Version)
	}

	// The attempt reaches its terminal state shortly after the receiver
	// responds.
	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, _, err := attempts.ListBySubscription(context.Background(), sub.ID, 10, 0)
		if err != nil {
			t.Fatalf("ListBySubscription() error: %v", err)
		}
		if len(stored) == 1 && stored[0].Result == ResultDelivered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("attempt never reached delivered: %+v", stored)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

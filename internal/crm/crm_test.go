package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
)

func checkHeaders(t *testing.T, r *http.Request) {
	t.Helper()

	if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization = %q", got)
	}
	if got := r.Header.Get("Version"); got != "2021-07-28" {
		t.Errorf("Version = %q", got)
	}
}

func TestContactByEmail_ExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)

		if r.URL.Path != "/contacts/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("locationId"); got != "loc-1" {
			t.Errorf("locationId = %q", got)
		}
		if got := r.URL.Query().Get("query"); got != "ada@example.com" {
			t.Errorf("query = %q", got)
		}

		// The search endpoint matches loosely; the client must pick the
		// exact email, case-insensitively.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{
				{"id": "c-0", "email": "ada@example.com.au"},
				{
					"id":        "c-1",
					"email":     "Ada@Example.com",
					"firstName": "Ada",
					"lastName":  "Lovelace",
					"tags":      []string{"affiliate-active"},
					"customFields": []map[string]string{
						{"id": "6vixXMn6Co7zax0Z26o8", "value": "ADA10"},
						{"id": "qVmpqD8spvnEz5HA4Xf4", "value": "gold"},
						{"id": "unrelated-field", "value": "ignored"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	contact, err := c.ContactByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if contact.ID != "c-1" {
		t.Errorf("id = %q, want exact match c-1", contact.ID)
	}
	if !contact.HasTag(AffiliateActiveTag) {
		t.Errorf("tag lost: %v", contact.Tags)
	}
	if contact.Profile.Name != "Ada Lovelace" {
		t.Errorf("profile name = %q", contact.Profile.Name)
	}
	if contact.Profile.AffiliateCode != "ADA10" || contact.Profile.Tier != "gold" {
		t.Errorf("profile fields = %+v", contact.Profile)
	}
}

func TestContactByEmail_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{
				{"id": "c-0", "email": "someone-else@example.com"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	_, err := c.ContactByEmail(context.Background(), "ada@example.com")
	if !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("got %v, want ErrContactNotFound", err)
	}
}

func TestContactByEmail_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	_, err := c.ContactByEmail(context.Background(), "ada@example.com")
	if err == nil || errors.Is(err, ErrContactNotFound) {
		t.Fatalf("got %v, want transport error", err)
	}
}

func TestContactByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)

		if r.URL.Path != "/contacts/c-1" {
			t.Errorf("path = %q", r.URL.Path)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"contact": map[string]any{
				"id":    "c-1",
				"email": "ada@example.com",
				"tags":  []string{"affiliate-active"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	contact, err := c.ContactByID(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.Email != "ada@example.com" {
		t.Errorf("email = %q", contact.Email)
	}
}

func TestContactByID_Missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	_, err := c.ContactByID(context.Background(), "c-404")
	if !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("got %v, want ErrContactNotFound", err)
	}
}

func TestSendMagicLink(t *testing.T) {
	var captured map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)

		if r.Method != http.MethodPost || r.URL.Path != "/conversations/messages" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}

		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "loc-1")

	contact := &model.Contact{ID: "c-1", Email: "ada@example.com", FirstName: "Ada"}
	link := "https://portal.example.com/affiliate-portal.html?token=abc"

	if err := c.SendMagicLink(context.Background(), contact, link); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured["type"] != "Email" || captured["contactId"] != "c-1" {
		t.Errorf("message envelope = %+v", captured)
	}
	if captured["subject"] != "Your Apex Automation Login Link" {
		t.Errorf("subject = %q", captured["subject"])
	}
	if !strings.Contains(captured["html"], link) {
		t.Errorf("html does not embed the link")
	}
	if !strings.Contains(captured["html"], "Hi Ada!") {
		t.Errorf("html does not greet by first name")
	}
}

func TestRenderMagicLinkEmail_DefaultGreeting(t *testing.T) {
	html, err := renderMagicLinkEmail("", "https://example.com/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(html, "Hi there!") {
		t.Errorf("missing fallback greeting")
	}
}

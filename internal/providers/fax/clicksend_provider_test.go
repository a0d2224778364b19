package fax

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/replenmobile/ordersend/internal/config"
)

func clickSendConfig() config.ClickSendConfig {
	return config.ClickSendConfig{
		Username: "user",
		APIKey:   "key",
		SenderID: "ordersend",
	}
}

func TestClickSendUploadsThenQueues(t *testing.T) {
	var uploads, sends int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "key" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}

		switch r.URL.Path {
		case "/uploads":
			uploads++
			if got := r.URL.Query().Get("convert"); got != "fax" {
				t.Errorf("convert = %q, want fax", got)
			}
			var req struct {
				Content string `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode upload: %v", err)
			}
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil || !bytes.HasPrefix(decoded, []byte("%PDF-")) {
				t.Errorf("uploaded content is not the document: %v", err)
			}
			fmt.Fprint(w, `{"response_code":"SUCCESS","data":{"_url":"https://rest.clicksend.com/v3/_uploads/abc.pdf"}}`)
		case "/fax/send":
			sends++
			var req struct {
				FileURL  string `json:"file_url"`
				Messages []struct {
					To           string `json:"to"`
					From         string `json:"from"`
					CustomString string `json:"custom_string"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode send: %v", err)
			}
			if !strings.HasSuffix(req.FileURL, "abc.pdf") {
				t.Errorf("file_url = %q", req.FileURL)
			}
			if len(req.Messages) != 1 || req.Messages[0].To != "+81312345678" {
				t.Errorf("messages = %+v", req.Messages)
			}
			if req.Messages[0].CustomString != "ORD-20250825-DEADBEEF" {
				t.Errorf("custom_string = %q", req.Messages[0].CustomString)
			}
			fmt.Fprint(w, `{"response_code":"SUCCESS","data":{"messages":[{"message_id":"FAX-123","status":"SUCCESS"}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	provider, err := NewClickSendProvider(clickSendConfig(), zerolog.Nop(), WithClickSendBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClickSendProvider: %v", err)
	}

	raw, err := provider.Send(context.Background(), &Payload{
		Reference: "ORD-20250825-DEADBEEF",
		To:        "+81312345678",
		Document:  []byte("%PDF-1.7 fake"),
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if raw.ID != "FAX-123" {
		t.Errorf("ID = %q, want FAX-123", raw.ID)
	}
	if raw.Code != http.StatusOK {
		t.Errorf("Code = %d", raw.Code)
	}
	if raw.Status != "SUCCESS" {
		t.Errorf("Status = %q", raw.Status)
	}
	if uploads != 1 || sends != 1 {
		t.Errorf("uploads = %d, sends = %d", uploads, sends)
	}
}

func TestClickSendUploadFailureAbortsSend(t *testing.T) {
	var sends int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fax/send" {
			sends++
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"response_code":"UNAUTHORIZED","response_msg":"invalid api key"}`)
	}))
	defer srv.Close()

	provider, err := NewClickSendProvider(clickSendConfig(), zerolog.Nop(), WithClickSendBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClickSendProvider: %v", err)
	}

	raw, err := provider.Send(context.Background(), &Payload{
		To:       "+81312345678",
		Document: []byte("%PDF-1.7"),
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if !strings.Contains(err.Error(), "upload http 401") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("err does not carry the backend message: %v", err)
	}
	if raw == nil || raw.Code != http.StatusUnauthorized {
		t.Errorf("raw = %+v", raw)
	}
	if sends != 0 {
		t.Errorf("send was attempted %d times after a failed upload", sends)
	}
}

func TestClickSendRejectsIncompletePayloads(t *testing.T) {
	provider, err := NewClickSendProvider(clickSendConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClickSendProvider: %v", err)
	}

	cases := []struct {
		name    string
		payload *Payload
	}{
		{name: "nil payload", payload: nil},
		{name: "missing destination", payload: &Payload{Document: []byte("%PDF-")}},
		{name: "missing document", payload: &Payload{To: "+81312345678"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := provider.Send(context.Background(), tc.payload); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewClickSendProviderRequiresCredentials(t *testing.T) {
	if _, err := NewClickSendProvider(config.ClickSendConfig{APIKey: "key"}, zerolog.Nop()); err == nil {
		t.Error("missing username accepted")
	}
	if _, err := NewClickSendProvider(config.ClickSendConfig{Username: "user"}, zerolog.Nop()); err == nil {
		t.Error("missing api key accepted")
	}
}

func TestDisabledProviderReportsConfiguration(t *testing.T) {
	_, err := NewDisabled("clicksend credentials not set").Send(context.Background(), &Payload{To: "+81312345678"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if !strings.Contains(err.Error(), "clicksend credentials not set") {
		t.Errorf("err does not carry the reason: %v", err)
	}
}

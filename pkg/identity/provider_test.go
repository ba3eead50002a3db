package identity

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeAdminAPI serves the token endpoint plus a configurable admin
// surface, recording every admin call.
type fakeAdminAPI struct {
	mux      *http.ServeMux
	requests []recordedRequest
}

func newFakeAdminAPI() *fakeAdminAPI {
	f := &fakeAdminAPI{mux: http.NewServeMux()}
	f.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"svc-token","expires_in":300}`)
	})
	return f
}

func (f *fakeAdminAPI) handle(pattern string, status int, response string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Body:   body,
		})
		w.WriteHeader(status)
		if response != "" {
			io.WriteString(w, response)
		}
	})
}

func newTestAdminClient(t *testing.T, api *fakeAdminAPI) *AdminClient {
	t.Helper()
	srv := httptest.NewServer(api.mux)
	t.Cleanup(srv.Close)

	client, err := NewAdminClient(AdminClientConfig{
		BaseURL:      srv.URL + "/admin",
		TokenURL:     srv.URL + "/token",
		ClientID:     "svc",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("NewAdminClient: %v", err)
	}
	return client
}

func TestUpdateCredentialConfirmsAccount(t *testing.T) {
	api := newFakeAdminAPI()
	api.handle("/admin/users/abc-123/credentials", http.StatusNoContent, "")
	api.handle("/admin/users/abc-123", http.StatusNoContent, "")
	client := newTestAdminClient(t, api)

	if err := client.UpdateCredential(t.Context(), "abc-123", "new-password"); err != nil {
		t.Fatalf("UpdateCredential: %v", err)
	}

	if len(api.requests) != 2 {
		t.Fatalf("got %d admin calls, want credential set then confirmation", len(api.requests))
	}

	cred := api.requests[0]
	if cred.Method != http.MethodPut || cred.Path != "/admin/users/abc-123/credentials" {
		t.Errorf("first call = %s %s, want PUT credentials", cred.Method, cred.Path)
	}
	if cred.Body["value"] != "new-password" || cred.Body["temporary"] != false {
		t.Errorf("credential payload = %v", cred.Body)
	}

	// A pre-existing account from a broken signup may be unverified;
	// redeeming the invitation proved the mailbox, so the account is
	// confirmed the same way a freshly created one is.
	confirm := api.requests[1]
	if confirm.Method != http.MethodPut || confirm.Path != "/admin/users/abc-123" {
		t.Errorf("second call = %s %s, want PUT user attributes", confirm.Method, confirm.Path)
	}
	if confirm.Body["email_verified"] != true || confirm.Body["enabled"] != true {
		t.Errorf("confirmation payload = %v, want verified and enabled", confirm.Body)
	}
}

func TestUpdateCredentialUnknownIdentity(t *testing.T) {
	api := newFakeAdminAPI()
	api.handle("/admin/users/missing/credentials", http.StatusNotFound, "")
	client := newTestAdminClient(t, api)

	err := client.UpdateCredential(t.Context(), "missing", "pw")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
	if len(api.requests) != 1 {
		t.Errorf("got %d admin calls, confirmation must not run after a failed credential set", len(api.requests))
	}
}

func TestCreateIdentityConflict(t *testing.T) {
	api := newFakeAdminAPI()
	api.handle("/admin/users", http.StatusConflict, "")
	client := newTestAdminClient(t, api)

	_, err := client.CreateIdentity(t.Context(), "taken@example.com", "Taken", "pw")
	if !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("err = %v, want ErrIdentityExists", err)
	}
}

func TestLookupByEmailNotFound(t *testing.T) {
	api := newFakeAdminAPI()
	api.handle("/admin/users", http.StatusOK, `[]`)
	client := newTestAdminClient(t, api)

	_, err := client.LookupByEmail(t.Context(), "nobody@example.com")
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
}

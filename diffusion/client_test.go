package diffusion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"diffusionto/logging"

	"go.uber.org/zap/zaptest"
)

const testAPIKey = "dk_test_0123456789abcdef"

// testLogger creates a logger that writes through t.Log.
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewFromZap(zaptest.NewLogger(t))
}

type statusReply struct {
	code int
	body string
}

// fakeVendor imitates the two diffusion.to endpoints. Status replies are
// served in order; the last one repeats.
type fakeVendor struct {
	mu sync.Mutex

	imageCode     int
	imageBody     string
	statusReplies []statusReply

	imageCalls  int
	statusCalls int
	lastRequest map[string]any
	lastToken   string
	headers     http.Header
}

func (f *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headers = r.Header.Clone()
	body, _ := io.ReadAll(r.Body)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/image":
		f.imageCalls++
		f.lastRequest = map[string]any{}
		_ = json.Unmarshal(body, &f.lastRequest)
		code := f.imageCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, f.imageBody)
	case "/api/image/status":
		f.statusCalls++
		var tb struct {
			Token string `json:"token"`
		}
		_ = json.Unmarshal(body, &tb)
		f.lastToken = tb.Token

		reply := statusReply{code: http.StatusNoContent}
		if len(f.statusReplies) > 0 {
			idx := f.statusCalls - 1
			if idx >= len(f.statusReplies) {
				idx = len(f.statusReplies) - 1
			}
			reply = f.statusReplies[idx]
		}
		w.WriteHeader(reply.code)
		_, _ = io.WriteString(w, reply.body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeVendor) counts() (image, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.imageCalls, f.statusCalls
}

func (f *fakeVendor) seen() (request map[string]any, token string, headers http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest, f.lastToken, f.headers
}

func newTestClient(t *testing.T, vendor http.Handler, pollInterval time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(vendor)
	t.Cleanup(server.Close)

	config := DefaultClientConfig()
	config.BaseURL = server.URL
	config.PollInterval = pollInterval

	client, err := NewClient(testAPIKey, server.Client(), testLogger(t), config)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

const readyBody = `{"data":{"id":7,"steps":50,"size":"small","model":"beauty_realism","credits_used":1,"created_at":"2024-05-01 10:00:00","updated_at":"2024-05-01 10:00:30","raw":"data:image/png;base64,iVBORw0KGgo="}}`

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		config      ClientConfig
		wantErr     bool
		errContains string
	}{
		{name: "valid", apiKey: testAPIKey, config: DefaultClientConfig()},
		{name: "zero config", apiKey: testAPIKey, config: ClientConfig{}},
		{name: "empty key", apiKey: "", config: DefaultClientConfig(), wantErr: true, errContains: "empty"},
		{name: "short key", apiKey: "abc", config: DefaultClientConfig(), wantErr: true, errContains: "too short"},
		{name: "bad base url", apiKey: testAPIKey, config: ClientConfig{BaseURL: "ftp://x"}, wantErr: true, errContains: "base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.apiKey, nil, nil, tt.config)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("NewClient() error = %v, want ErrInvalidParameter", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewClient() error = %q, want to contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() unexpected error: %v", err)
			}
			if client.BaseURL() != DefaultBaseURL {
				t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), DefaultBaseURL)
			}
			if client.PollInterval() != DefaultPollInterval {
				t.Errorf("PollInterval() = %v, want %v", client.PollInterval(), DefaultPollInterval)
			}
		})
	}
}

func TestNewDefaultClient(t *testing.T) {
	client, err := NewDefaultClient(testAPIKey)
	if err != nil {
		t.Fatalf("NewDefaultClient: %v", err)
	}
	if client.BaseURL() != "https://diffusion.to" {
		t.Errorf("BaseURL() = %q", client.BaseURL())
	}
}

func TestRequestImage(t *testing.T) {
	vendor := &fakeVendor{imageBody: `{"token":"tok-123"}`}
	client := newTestClient(t, vendor, time.Millisecond)

	req := NewImageRequest("a lighthouse at dusk")
	req, _ = req.WithNegativePrompt("fog")
	req, _ = req.WithModel(ModelDreamReality)

	token, err := client.RequestImage(context.Background(), req)
	if err != nil {
		t.Fatalf("RequestImage: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want tok-123", token)
	}

	body, _, headers := vendor.seen()
	if got := headers.Get("Authorization"); got != "Bearer "+testAPIKey {
		t.Errorf("Authorization = %q", got)
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if body["prompt"] != "a lighthouse at dusk" ||
		body["negative"] != "fog" ||
		body["model"] != "dream_reality" ||
		body["steps"] != float64(50) {
		t.Errorf("request body = %v", body)
	}
}

func TestRequestImageInvalidMakesNoNetworkCall(t *testing.T) {
	vendor := &fakeVendor{imageBody: `{"token":"never"}`}
	client := newTestClient(t, vendor, time.Millisecond)

	_, err := client.RequestImage(context.Background(), NewImageRequest(""))
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("RequestImage(empty prompt) error = %v, want ErrInvalidParameter", err)
	}

	_, err = client.RequestImage(context.Background(), NewImageRequest(strings.Repeat("x", MaxPromptLength+1)))
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("RequestImage(long prompt) error = %v, want ErrInvalidParameter", err)
	}

	if images, statuses := vendor.counts(); images != 0 || statuses != 0 {
		t.Errorf("vendor saw %d image and %d status calls, want none", images, statuses)
	}
}

func TestRequestImageErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantErr  error
		wantCode int
		wantMsg  string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"overloaded"}`, ErrAPI, 500, "overloaded"},
		{"unauthorized plain", http.StatusUnauthorized, `invalid api key`, ErrAPI, 401, "invalid api key"},
		{"error field", http.StatusUnprocessableEntity, `{"error":"prompt rejected"}`, ErrAPI, 422, "prompt rejected"},
		{"empty body", http.StatusBadGateway, ``, ErrAPI, 502, "Bad Gateway"},
		{"not json", http.StatusOK, `<html>`, ErrDecode, 0, ""},
		{"missing token", http.StatusOK, `{"id":1}`, ErrDecode, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := &fakeVendor{imageCode: tt.code, imageBody: tt.body}
			client := newTestClient(t, vendor, time.Millisecond)

			_, err := client.RequestImage(context.Background(), NewImageRequest("cat"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantCode == 0 {
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %v is not *APIError", err)
			}
			if apiErr.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantCode)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestRequestImageNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	config := DefaultClientConfig()
	config.BaseURL = url
	client, err := NewClient(testAPIKey, &http.Client{Timeout: 2 * time.Second}, testLogger(t), config)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.RequestImage(context.Background(), NewImageRequest("cat"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		reply     statusReply
		wantState JobState
		wantErr   error
	}{
		{"no content", statusReply{http.StatusNoContent, ""}, StatePending, nil},
		{"accepted", statusReply{http.StatusAccepted, ""}, StatePending, nil},
		{"created", statusReply{http.StatusCreated, readyBody}, StateReady, nil},
		{"ok", statusReply{http.StatusOK, readyBody}, StateReady, nil},
		{"failed", statusReply{http.StatusOK, `{"status":"failed","message":"nsfw"}`}, StateFailed, nil},
		{"server error", statusReply{http.StatusInternalServerError, "oops"}, 0, ErrAPI},
		{"not found", statusReply{http.StatusNotFound, `{"message":"unknown token"}`}, 0, ErrAPI},
		{"bad body", statusReply{http.StatusCreated, `{"data":`}, 0, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := &fakeVendor{statusReplies: []statusReply{tt.reply}}
			client := newTestClient(t, vendor, time.Millisecond)

			status, err := client.Check(context.Background(), "tok-9")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Check() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check() unexpected error: %v", err)
			}
			if status.State != tt.wantState {
				t.Errorf("State = %v, want %v", status.State, tt.wantState)
			}
			if _, token, _ := vendor.seen(); token != "tok-9" {
				t.Errorf("vendor saw token %q", token)
			}
		})
	}
}

func TestCheckReadyImage(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{{http.StatusCreated, readyBody}}}
	client := newTestClient(t, vendor, time.Millisecond)

	status, err := client.Check(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	img := status.Image
	if img == nil {
		t.Fatal("ready status without image")
	}
	if img.ID != 7 || img.CreditsUsed != 1 || img.Model != ModelBeautyRealism || img.Steps != Steps50 {
		t.Errorf("image = %+v", img)
	}
	data, err := img.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(data) < 4 || string(data[1:4]) != "PNG" {
		t.Errorf("decoded bytes = %v", data)
	}
}

func TestCheckEmptyToken(t *testing.T) {
	vendor := &fakeVendor{}
	client := newTestClient(t, vendor, time.Millisecond)

	if _, err := client.Check(context.Background(), ""); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Check(\"\") error = %v, want ErrInvalidParameter", err)
	}
	if _, err := client.CheckAndWait(context.Background(), " ", time.Second); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("CheckAndWait(\" \") error = %v, want ErrInvalidParameter", err)
	}
	if _, statuses := vendor.counts(); statuses != 0 {
		t.Errorf("vendor saw %d status calls, want 0", statuses)
	}
}

func TestCheckAndWaitBecomesReady(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{
		{http.StatusNoContent, ""},
		{http.StatusNoContent, ""},
		{http.StatusCreated, readyBody},
	}}
	client := newTestClient(t, vendor, 5*time.Millisecond)

	img, err := client.CheckAndWait(context.Background(), "tok", 5*time.Second)
	if err != nil {
		t.Fatalf("CheckAndWait: %v", err)
	}
	if img == nil || img.ID != 7 {
		t.Errorf("image = %+v", img)
	}
	if _, statuses := vendor.counts(); statuses != 3 {
		t.Errorf("status calls = %d, want 3", statuses)
	}
}

func TestCheckAndWaitZeroTimeoutChecksOnce(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{{http.StatusNoContent, ""}}}
	client := newTestClient(t, vendor, 5*time.Millisecond)

	_, err := client.CheckAndWait(context.Background(), "tok", 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) || timeoutErr.Attempts != 1 {
		t.Errorf("timeout error = %+v, want 1 attempt", err)
	}
	if _, statuses := vendor.counts(); statuses > 1 {
		t.Errorf("status calls = %d, want at most 1", statuses)
	}
}

func TestCheckAndWaitZeroTimeoutReturnsReady(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{{http.StatusCreated, readyBody}}}
	client := newTestClient(t, vendor, 5*time.Millisecond)

	img, err := client.CheckAndWait(context.Background(), "tok", 0)
	if err != nil || img == nil {
		t.Fatalf("CheckAndWait = %v, %v; want image", img, err)
	}
}

func TestCheckAndWaitTimesOut(t *testing.T) {
	vendor := &fakeVendor{}
	client := newTestClient(t, vendor, 20*time.Millisecond)

	start := time.Now()
	_, err := client.CheckAndWait(context.Background(), "tok", 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("returned after %v, before the deadline", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("returned after %v, far past the deadline", elapsed)
	}
	if _, statuses := vendor.counts(); statuses < 2 {
		t.Errorf("status calls = %d, want several", statuses)
	}
}

func TestCheckAndWaitSleepsNoLongerThanRemaining(t *testing.T) {
	vendor := &fakeVendor{}
	client := newTestClient(t, vendor, time.Hour)

	start := time.Now()
	_, err := client.CheckAndWait(context.Background(), "tok", 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("waited %v with a 50ms timeout", elapsed)
	}
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) || timeoutErr.Attempts != 1 {
		t.Errorf("timeout error = %+v, want 1 attempt", err)
	}
	if _, statuses := vendor.counts(); statuses != 1 {
		t.Errorf("status calls = %d, want 1 (none at or past the deadline)", statuses)
	}
}

func TestCheckAndWaitReturnsErrors(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{
		{http.StatusNoContent, ""},
		{http.StatusInternalServerError, "boom"},
		{http.StatusCreated, readyBody},
	}}
	client := newTestClient(t, vendor, time.Millisecond)

	_, err := client.CheckAndWait(context.Background(), "tok", 5*time.Second)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Fatalf("error = %v, want APIError 500", err)
	}
	if _, statuses := vendor.counts(); statuses != 2 {
		t.Errorf("status calls = %d, want 2", statuses)
	}
}

func TestCheckAndWaitJobFailed(t *testing.T) {
	vendor := &fakeVendor{statusReplies: []statusReply{
		{http.StatusOK, `{"error":"content policy violation"}`},
	}}
	client := newTestClient(t, vendor, time.Millisecond)

	_, err := client.CheckAndWait(context.Background(), "tok", time.Second)
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %v, want *JobFailedError", err)
	}
	if failed.Reason != "content policy violation" || failed.Token != "tok" {
		t.Errorf("JobFailedError = %+v", failed)
	}
}

func TestCheckAndWaitContextCanceled(t *testing.T) {
	vendor := &fakeVendor{}
	client := newTestClient(t, vendor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := client.CheckAndWait(ctx, "tok", NoTimeout)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerate(t *testing.T) {
	vendor := &fakeVendor{
		imageBody:     `{"token":"tok-gen"}`,
		statusReplies: []statusReply{{http.StatusNoContent, ""}, {http.StatusCreated, readyBody}},
	}
	client := newTestClient(t, vendor, time.Millisecond)

	token, img, err := client.Generate(context.Background(), NewImageRequest("owl"), time.Second)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if token != "tok-gen" || img == nil {
		t.Errorf("Generate = %q, %+v", token, img)
	}
	if _, polled, _ := vendor.seen(); polled != "tok-gen" {
		t.Errorf("status polled with token %q", polled)
	}
}

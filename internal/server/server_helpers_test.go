package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
}

func expectErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	expectStatus(t, resp, status)
	body := decodeBody(t, resp)
	if body["code"] != code {
		t.Fatalf("expected error code %q, got %#v", code, body["code"])
	}
}

func createRoom(t *testing.T, ts *httptest.Server, token string, settings map[string]any) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms", token, settings)
	expectStatus(t, resp, http.StatusCreated)
	body := decodeBody(t, resp)
	code, ok := body["code"].(string)
	if !ok || code == "" {
		t.Fatalf("expected room code, got %#v", body["code"])
	}
	return code
}

func joinRoom(t *testing.T, ts *httptest.Server, token, code string) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/rooms/"+code+"/join", token, nil)
	expectStatus(t, resp, http.StatusOK)
}

func fetchState(t *testing.T, ts *httptest.Server, token, code string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/rooms/"+code+"/state", token, nil)
	expectStatus(t, resp, http.StatusOK)
	return decodeBody(t, resp)
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"peerlink/native/internal/domain"
)

func TestFetchICEServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var req iceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RequestID == "" {
			t.Errorf("bad request body: %v %+v", err, req)
		}

		w.Write([]byte(`{"result":0,"msg":"","data":{"iceServers":[
			{"urls":["stun:stun.example.com:3478"]},
			{"urls":["turn:turn.example.com:3478?transport=udp","turn:turn.example.com:3478?transport=tcp"],"username":"u","credential":"p"}
		]}}`))
	}))
	defer srv.Close()

	servers, err := NewClient(srv.URL, "tok", nil).FetchICEServers()
	if err != nil {
		t.Fatalf("FetchICEServers: %v", err)
	}

	want := []domain.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{
			URLs:       []string{"turn:turn.example.com:3478?transport=udp", "turn:turn.example.com:3478?transport=tcp"},
			Username:   "u",
			Credential: "p",
		},
	}
	if !reflect.DeepEqual(servers, want) {
		t.Errorf("servers = %+v, want %+v", servers, want)
	}
}

func TestFetchICEServers_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusUnauthorized, `denied`, "status 401 Unauthorized: \"denied\""},
		{"bad json", http.StatusOK, `{`, "decode envelope"},
		{"api error", http.StatusOK, `{"result":-1,"msg":"token expired"}`, "result -1: token expired"},
		{"empty list", http.StatusOK, `{"result":0,"data":{"iceServers":[]}}`, "no ICE servers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", nil).FetchICEServers()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		status  int
		body    string
		want    payload
		wantErr string
	}{
		{"ok", http.StatusOK, `{"result":0,"data":{"name":"a"}}`, payload{Name: "a"}, ""},
		{"missing data", http.StatusOK, `{"result":0}`, payload{}, ""},
		{"server result", http.StatusOK, `{"result":3,"msg":"quota","data":{"name":"a"}}`, payload{}, "result 3: quota"},
		{"bad status", http.StatusBadGateway, "  upstream down\n", payload{}, "status 502 Bad Gateway: \"upstream down\""},
		{"array body", http.StatusOK, `[1,2]`, payload{}, "decode envelope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(tt.status)
			rec.WriteString(tt.body)

			got, err := decodeEnvelope[payload](rec.Result())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEnvelope: %v", err)
			}
			if got != tt.want {
				t.Errorf("payload = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFetchICEServers_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, "", nil).FetchICEServers(); err == nil {
		t.Fatal("expected an error for an unreachable endpoint")
	}
}

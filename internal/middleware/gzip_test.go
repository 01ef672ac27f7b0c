package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// orderEchoHandler разбирает JSON заказа и отвечает JSON-подтверждением,
// как это делает обработчик оформления заказа.
func orderEchoHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req struct {
		DeliveryAddress string `json:"delivery_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":               17,
		"status":           "pending",
		"delivery_address": req.DeliveryAddress,
	})
}

func TestGzipMiddleware(t *testing.T) {
	orderJSON := `{"delivery_address":"Prostokvashino, Pochtovaya st. 1"}`

	tests := []struct {
		name            string
		acceptEncoding  string
		gzipRequestBody bool
		wantEncoding    string
	}{
		{
			name:           "client accepts gzip",
			acceptEncoding: "gzip",
			wantEncoding:   "gzip",
		},
		{
			name:           "client does not accept gzip",
			acceptEncoding: "",
			wantEncoding:   "",
		},
		{
			name:            "compressed request body",
			acceptEncoding:  "gzip",
			gzipRequestBody: true,
			wantEncoding:    "gzip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(orderJSON)
			if tt.gzipRequestBody {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				if _, err := gz.Write([]byte(orderJSON)); err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := gz.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/api/orders", requestBody)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			if tt.gzipRequestBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(orderEchoHandler))
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusCreated {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusCreated)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}

			reader := io.Reader(res.Body)
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			var order struct {
				ID              int64  `json:"id"`
				Status          string `json:"status"`
				DeliveryAddress string `json:"delivery_address"`
			}
			if err := json.NewDecoder(reader).Decode(&order); err != nil {
				t.Fatalf("decode response: %v", err)
			}

			if order.ID != 17 || order.Status != "pending" {
				t.Fatalf("unexpected order: %+v", order)
			}
			if order.DeliveryAddress != "Prostokvashino, Pochtovaya st. 1" {
				t.Fatalf("delivery address = %q, body was not passed through", order.DeliveryAddress)
			}
		})
	}
}

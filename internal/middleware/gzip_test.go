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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPayload struct {
	Items []struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	} `json:"items"`
	UsedBonus string `json:"usedBonus"`
}

type orderReply struct {
	OrderNumber string `json:"orderNumber"`
	ItemCount   int    `json:"itemCount"`
	UsedBonus   string `json:"usedBonus"`
}

// echoOrder читает заказ из тела запроса и отвечает его кратким описанием.
func echoOrder(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var in orderPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(orderReply{OrderNumber: "ORD-0001", ItemCount: len(in.Items), UsedBonus: in.UsedBonus})
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestGzipMiddleware(t *testing.T) {
	order := `{"items":[{"name":"shirt","price":"1000"},{"name":"coat","price":"2500.50"}],"usedBonus":"100"}`

	tests := []struct {
		name            string
		compressRequest bool
		acceptEncoding  string
		wantEncoding    string
		wantItemCount   int
		wantStatus      int
		wantContentType string
	}{
		{
			name:            "plain order",
			wantEncoding:    "",
			wantItemCount:   2,
			wantStatus:      http.StatusCreated,
			wantContentType: "application/json",
		},
		{
			name:            "client accepts gzip",
			acceptEncoding:  "gzip, deflate",
			wantEncoding:    "gzip",
			wantItemCount:   2,
			wantStatus:      http.StatusCreated,
			wantContentType: "application/json",
		},
		{
			name:            "compressed order body",
			compressRequest: true,
			wantEncoding:    "",
			wantItemCount:   2,
			wantStatus:      http.StatusCreated,
			wantContentType: "application/json",
		},
		{
			name:            "compressed both ways",
			compressRequest: true,
			acceptEncoding:  "gzip",
			wantEncoding:    "gzip",
			wantItemCount:   2,
			wantStatus:      http.StatusCreated,
			wantContentType: "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(order)
			req := httptest.NewRequest(http.MethodPost, "/api/order", nil)
			if tt.compressRequest {
				body = gzipBytes(t, body)
				req.Header.Set("Content-Encoding", "gzip")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoOrder)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			require.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantContentType, res.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				require.NoError(t, err)
				defer gr.Close()
				reader = gr
			}

			var reply orderReply
			require.NoError(t, json.NewDecoder(reader).Decode(&reply))
			assert.Equal(t, "ORD-0001", reply.OrderNumber)
			assert.Equal(t, tt.wantItemCount, reply.ItemCount)
			assert.Equal(t, "100", reply.UsedBonus)
		})
	}
}

func TestGzipMiddleware_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Encoding", "gzip")

	called := false
	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed gzip body")
}

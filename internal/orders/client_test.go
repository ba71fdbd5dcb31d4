package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	"github.com/hamta/tarabar/internal/model"
)

func testLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	receptor := &model.Receptor{
		ID:              1,
		CompanyName:     "Hamta Shop",
		OrdersBaseURL:   srv.URL,
		OrdersAuthToken: "secret-token",
	}
	return NewClient(receptor, testLogger())
}

func TestFetchOrderIDs_NestedEnvelope(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success":true,"data":{"orders":[{"id":100924},{"id":100925}]}}`))
	})

	ids, err := c.FetchOrderIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100924", "100925"}, ids)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestFetchOrderIDs_FlatEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders":[{"id":"7"},{"id":"8"}]}`))
	})

	ids, err := c.FetchOrderIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, ids)
}

func TestFetchOrderIDs_BareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[100924,100925,100926]`))
	})

	ids, err := c.FetchOrderIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100924", "100925", "100926"}, ids)
}

func TestFetchOrderIDs_UnknownShapeYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entries":[1,2,3]}`))
	})

	ids, err := c.FetchOrderIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFetchOrderIDs_HTTPErrorPropagates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchOrderIDs(context.Background())
	assert.Error(t, err)
}

func TestFetchOrderIDs_NotConfigured(t *testing.T) {
	c := NewClient(&model.Receptor{ID: 2}, testLogger())

	_, err := c.FetchOrderIDs(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchOrderDetails_EnvelopeVariants(t *testing.T) {
	order := map[string]any{"id": 100924, "status": "processing", "total": "2000"}

	tests := []struct {
		name string
		body any
	}{
		{"success data result", map[string]any{"success": true, "data": map[string]any{"result": order}}},
		{"data only", map[string]any{"data": order}},
		{"root result", map[string]any{"result": order}},
		{"bare order", order},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/orders/100924", r.URL.Path)
				json.NewEncoder(w).Encode(tt.body)
			})

			got, err := c.FetchOrderDetails(context.Background(), "100924")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, FlexString("100924"), got.ID)
			assert.Equal(t, FlexFloat(2000), got.Total)
		})
	}
}

func TestFetchOrderDetails_AbsentOnFailure(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		got, err := c.FetchOrderDetails(context.Background(), "1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown shape", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"try again later"}`))
		})
		got, err := c.FetchOrderDetails(context.Background(), "1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // refused connection
		c := NewClient(&model.Receptor{ID: 1, OrdersBaseURL: srv.URL, OrdersAuthToken: "t"}, testLogger())
		got, err := c.FetchOrderDetails(context.Background(), "1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSendCallback(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	ok := c.SendCallback(context.Background(), "100924", "ORD-A1B2C3D4E5", 7, "")
	assert.True(t, ok)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/orders/100924/status", gotPath)
	assert.Equal(t, "tarabar-proc", gotBody["status"])
	assert.Equal(t, defaultCallbackNote, gotBody["note"])
}

func TestSendCallback_CustomNote(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	})

	c.SendCallback(context.Background(), "1", "ORD-AAAAAAAAAA", 1, "custom note")
	assert.Equal(t, "custom note", gotBody["note"])
}

func TestSendCallback_NeverErrors(t *testing.T) {
	t.Run("remote rejection", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})
		assert.False(t, c.SendCallback(context.Background(), "1", "ORD-AAAAAAAAAA", 1, ""))
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(&model.Receptor{ID: 1, OrdersBaseURL: srv.URL, OrdersAuthToken: "t"}, testLogger())
		assert.False(t, c.SendCallback(context.Background(), "1", "ORD-AAAAAAAAAA", 1, ""))
	})

	t.Run("missing base url", func(t *testing.T) {
		c := NewClient(&model.Receptor{ID: 1}, testLogger())
		assert.False(t, c.SendCallback(context.Background(), "1", "ORD-AAAAAAAAAA", 1, ""))
	})
}

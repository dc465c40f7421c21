package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesBusinessCounters(t *testing.T) {
	Payments.WithLabelValues("sale", "success").Inc()
	PropertiesSold.Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `ethiohome_payments_total{kind="sale",status="success"}`)
	assert.Contains(t, string(body), "ethiohome_properties_sold_total")
}

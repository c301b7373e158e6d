package server

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sunbridge/sunbridge/pkg/types"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestForceChargingCommand(t *testing.T) {
	d := &mockController{}
	d.On("SetForceCharging", mock.Anything, true, 2000).Return(nil).Once()
	_, ts := newTestServer(t, d)

	resp := postJSON(t, ts.URL+"/api/commands/force-charging", `{"enabled":true,"limitW":2000}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	d.AssertExpectations(t)
}

func TestForceChargingCommandRejected(t *testing.T) {
	d := &mockController{}
	d.On("SetForceCharging", mock.Anything, true, 0).Return(types.ErrChargeLimitRejected).Once()
	_, ts := newTestServer(t, d)

	resp := postJSON(t, ts.URL+"/api/commands/force-charging", `{"enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestForceChargingCommandDeviceDown(t *testing.T) {
	d := &mockController{}
	d.On("SetForceCharging", mock.Anything, false, 0).Return(types.ErrTransportFailure).Once()
	_, ts := newTestServer(t, d)

	resp := postJSON(t, ts.URL+"/api/commands/force-charging", `{"enabled":false}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDischargeBlockCommand(t *testing.T) {
	d := &mockController{}
	d.On("SetDischargeBlocked", mock.Anything, true).Return(nil).Once()
	_, ts := newTestServer(t, d)

	resp := postJSON(t, ts.URL+"/api/commands/discharge-block", `{"blocked":true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	d.AssertExpectations(t)
}

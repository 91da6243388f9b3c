package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubertat/curtainkit/curtain"
)

type fakeTarget struct {
	snap      curtain.Snapshot
	err       error
	requested []int
}

func (ft *fakeTarget) Snapshot() curtain.Snapshot {
	return ft.snap
}

func (ft *fakeTarget) SetTarget(ctx context.Context, position int) error {
	ft.requested = append(ft.requested, position)
	if ft.err != nil {
		return ft.err
	}
	ft.snap.Position = position
	return nil
}

func serve(t *testing.T, target Target, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	s := &Server{Token: "secret"}
	rec := httptest.NewRecorder()
	s.Handler(target).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetState(t *testing.T) {
	target := &fakeTarget{snap: curtain.Snapshot{Id: "aa", Position: 30, Motion: curtain.Stopped}}

	rec := serve(t, target, http.MethodGet, "/state/token/secret")

	require.Equal(t, http.StatusOK, rec.Code)
	var got curtain.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, target.snap, got)
}

func TestTokenMismatch(t *testing.T) {
	target := &fakeTarget{}

	rec := serve(t, target, http.MethodPut, "/target/40/token/wrong")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, target.requested)
}

func TestPutTarget(t *testing.T) {
	target := &fakeTarget{snap: curtain.Snapshot{Id: "aa", Position: 30}}

	rec := serve(t, target, http.MethodPut, "/target/80/token/secret")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{80}, target.requested)
	assert.Contains(t, rec.Body.String(), `"position":80`)
}

func TestPutTargetNotANumber(t *testing.T) {
	rec := serve(t, &fakeTarget{}, http.MethodPut, "/target/half/token/secret")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutTargetErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"invalid":  {errors.Wrap(curtain.ErrInvalidPosition, "requested 120"), http.StatusBadRequest},
		"busy":     {curtain.ErrBusy, http.StatusConflict},
		"stopped":  {curtain.ErrStopped, http.StatusServiceUnavailable},
		"failed":   {&curtain.MoveFailedError{Target: 10, Err: errors.New("ble")}, http.StatusBadGateway},
		"canceled": {context.Canceled, http.StatusGatewayTimeout},
		"other":    {errors.New("boom"), http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, &fakeTarget{err: tc.err}, http.MethodPost, "/target/10/token/secret")
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestStartRequiresToken(t *testing.T) {
	s := &Server{HttpAddr: "127.0.0.1:0"}
	assert.Error(t, s.Start(&fakeTarget{}))
}

func TestStartServesAndReportsBindErrors(t *testing.T) {
	target := &fakeTarget{snap: curtain.Snapshot{Id: "aa", Position: 70, Motion: curtain.Stopped}}
	s := &Server{Token: "secret", HttpAddr: "127.0.0.1:0"}
	require.NoError(t, s.Start(target))
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr() + "/state/token/secret")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	taken := &Server{Token: "secret", HttpAddr: s.Addr()}
	assert.Error(t, taken.Start(target))
	assert.Empty(t, taken.Addr())
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"xray-data/internal/domain"
	"xray-data/internal/models"
	"xray-data/internal/repository"
	"xray-data/internal/store"
)

func newTestService() (*SignalService, *repository.MemorySignalsRepo, *store.MemoryDeviceActivity) {
	repo := repository.NewMemorySignalsRepo()
	activity := store.NewMemoryDeviceActivity()
	return NewSignalService(repo, activity, zap.NewNop()), repo, activity
}

func validPayload(t *testing.T) *SaveSignalPayload {
	t.Helper()
	payload, err := DecodeSavePayload([]byte(`{"deviceId":"dev-1","time":1000,"data":[[0,[1,2,3]]]}`))
	require.NoError(t, err)
	return payload
}

func TestSaveSignalDerivesLengthAndVolume(t *testing.T) {
	svc, _, _ := newTestService()

	payload, err := DecodeSavePayload([]byte(`{"deviceId":"dev-1","time":1735683480000,"data":[[762,[51.33,12.33,1.2]],[1766,[51.33,12.33,1.53]]]}`))
	require.NoError(t, err)

	saved, err := svc.SaveSignal(context.Background(), payload)
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "dev-1", saved.DeviceID)
	assert.Equal(t, int64(1735683480000), saved.Time)
	assert.Equal(t, 2, saved.DataLength)

	encoded, err := domain.EncodeSamples(saved.RawData)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), saved.DataVolume)
}

func TestSaveSignalRejectsEmptyData(t *testing.T) {
	svc, repo, _ := newTestService()

	payload, err := DecodeSavePayload([]byte(`{"deviceId":"dev-1","time":1000,"data":[]}`))
	require.NoError(t, err)

	_, err = svc.SaveSignal(context.Background(), payload)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "data must contain at least one sample")

	// nothing persisted
	total, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSaveSignalRejectsNullReadings(t *testing.T) {
	svc, repo, _ := newTestService()

	payload, err := DecodeSavePayload([]byte(`{"deviceId":"dev-1","time":1000,"data":[[null,[1,null,3]]]}`))
	require.NoError(t, err)

	_, err = svc.SaveSignal(context.Background(), payload)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "data[0]")

	total, err := repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSaveSignalEnumeratesAllFailingFields(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.SaveSignal(context.Background(), &SaveSignalPayload{
		Data: []json.RawMessage{json.RawMessage(`[0,[1,2]]`)},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3) // deviceId, time, data[0]
	assert.Contains(t, verr.Error(), "deviceId")
	assert.Contains(t, verr.Error(), "time")
	assert.Contains(t, verr.Error(), "data[0]")
}

func TestSaveSignalTouchesDeviceActivity(t *testing.T) {
	svc, _, activity := newTestService()

	_, err := svc.SaveSignal(context.Background(), validPayload(t))
	require.NoError(t, err)

	seen, err := activity.LastSeen(context.Background())
	require.NoError(t, err)
	assert.Contains(t, seen, "dev-1")
}

func TestDecodeSavePayloadRejectsUnknownFields(t *testing.T) {
	_, err := DecodeSavePayload([]byte(`{"pattern":"x-ray-signal","data":{}}`))
	assert.Error(t, err)
}

// pagingSpy records the window the service asks the store for.
type pagingSpy struct {
	repository.SignalsRepo
	offset, limit int
	total         int
}

func (s *pagingSpy) Find(_ context.Context, _ *repository.SignalFilters, offset, limit int) ([]*domain.SignalRecord, error) {
	s.offset, s.limit = offset, limit
	return nil, nil
}

func (s *pagingSpy) Count(context.Context, *repository.SignalFilters) (int, error) {
	return s.total, nil
}

func TestFindAllIssuesSkipAndLimit(t *testing.T) {
	spy := &pagingSpy{total: 2}
	svc := NewSignalService(spy, nil, zap.NewNop())

	page, err := svc.FindAll(context.Background(), nil, models.Pagination{Page: 3, Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, 10, spy.offset)
	assert.Equal(t, 5, spy.limit)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 5, page.Limit)
	// empty page is a valid outcome even with a non-zero total
	assert.NotNil(t, page.Records)
	assert.Empty(t, page.Records)
}

func TestFindAllTotalPages(t *testing.T) {
	cases := []struct {
		total, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{21, 5, 5},
	}
	for _, tc := range cases {
		spy := &pagingSpy{total: tc.total}
		svc := NewSignalService(spy, nil, zap.NewNop())

		page, err := svc.FindAll(context.Background(), nil, models.Pagination{Page: 1, Limit: tc.limit})
		require.NoError(t, err)
		assert.Equal(t, tc.want, page.TotalPages, "total=%d limit=%d", tc.total, tc.limit)
		assert.Equal(t, tc.total, page.Total)
	}
}

func TestFindOneAbsentIsNilNotError(t *testing.T) {
	svc, _, _ := newTestService()

	rec, err := svc.FindOne(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDeleteOneAbsentIsFalseNotError(t *testing.T) {
	svc, _, _ := newTestService()

	deleted, err := svc.DeleteOne(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteAllZeroMatchesIsSuccess(t *testing.T) {
	svc, _, _ := newTestService()

	n, err := svc.DeleteAll(context.Background(), &repository.SignalFilters{DeviceID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSaveSignalSurfacesPersistenceError(t *testing.T) {
	svc := NewSignalService(&failingRepo{}, nil, zap.NewNop())

	_, err := svc.SaveSignal(context.Background(), validPayload(t))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

type failingRepo struct {
	repository.SignalsRepo
}

func (f *failingRepo) Insert(context.Context, *domain.SignalRecord) (*domain.SignalRecord, error) {
	return nil, errors.New("store unreachable")
}

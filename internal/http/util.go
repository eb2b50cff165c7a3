package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"xray-data/internal/models"
	"xray-data/internal/repository"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBytes))
}

// parseSignalFilters maps query parameters to filter criteria. A parameter
// that is present but not parseable is a client error, not a silent default.
func parseSignalFilters(q url.Values) (*repository.SignalFilters, error) {
	filters := &repository.SignalFilters{
		DeviceID:  q.Get("deviceId"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	if filters.SortBy != "" {
		switch filters.SortBy {
		case "time", "dataVolume", "dataLength":
		default:
			return nil, fmt.Errorf("sortBy must be one of time, dataVolume, dataLength")
		}
	}
	if filters.SortOrder != "" && filters.SortOrder != "asc" && filters.SortOrder != "desc" {
		return nil, fmt.Errorf("sortOrder must be asc or desc")
	}

	var err error
	if filters.TimeStart, err = int64Param(q, "timeStart"); err != nil {
		return nil, err
	}
	if filters.TimeEnd, err = int64Param(q, "timeEnd"); err != nil {
		return nil, err
	}
	if filters.DataVolumeMin, err = intParam(q, "dataVolumeMin"); err != nil {
		return nil, err
	}
	if filters.DataVolumeMax, err = intParam(q, "dataVolumeMax"); err != nil {
		return nil, err
	}
	if filters.DataLengthMin, err = intParam(q, "dataLengthMin"); err != nil {
		return nil, err
	}
	if filters.DataLengthMax, err = intParam(q, "dataLengthMax"); err != nil {
		return nil, err
	}

	return filters, nil
}

func parsePagination(q url.Values) (models.Pagination, error) {
	p := models.Pagination{Page: models.DefaultPage, Limit: models.DefaultLimit}

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > models.MaxLimit {
			return p, fmt.Errorf("limit must be an integer between 1 and %d", models.MaxLimit)
		}
		p.Limit = n
	}
	return p, nil
}

func int64Param(q url.Values, name string) (*int64, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

func intParam(q url.Values, name string) (*int, error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

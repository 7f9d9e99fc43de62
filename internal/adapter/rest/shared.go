package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/eslsoft/tafsirnet/internal/adapter/mapping"
	"github.com/eslsoft/tafsirnet/internal/repository"
)

const (
	_maxPageSize     = 10000
	_defaultPageSize = 20
	_maxBodyBytes    = 4 << 20
)

var errBadRequest = errors.New("bad request")

func convertPagination(r *http.Request) (repository.Pagination, error) {
	pageNo, err := queryInt(r, "page_no", 1)
	if err != nil {
		return repository.Pagination{}, err
	}
	pageSize, err := queryInt(r, "page_size", _defaultPageSize)
	if err != nil {
		return repository.Pagination{}, err
	}
	if pageNo <= 0 {
		pageNo = 1
	}
	if pageSize <= 0 {
		pageSize = _defaultPageSize
	}
	if pageSize > _maxPageSize {
		pageSize = _maxPageSize
	}
	return repository.Pagination{PageNo: int32(pageNo), PageSize: int32(pageSize)}, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return int(v), nil
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return v, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, _maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapping.HTTPStatus(err)
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, mapping.ToErrorBody(err))
}

package http

import (
	"net/http"
	"strconv"

	"eventbook/pkg/config"
	apperrors "eventbook/pkg/errors"
)

// HeaderUserID carries the authenticated caller's identity, set by the
// gateway in front of this service.
const HeaderUserID = "X-User-ID"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = int64(v)
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// UserID extracts the caller identity from the request headers.
func UserID(r *http.Request) (string, error) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return "", apperrors.Unauthorized("missing user identity")
	}
	return userID, nil
}

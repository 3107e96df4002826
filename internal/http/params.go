package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/yamdb/internal/repository"
)

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

func buildPage(query url.Values, defaultLimit int) (repository.Page, error) {
	page := repository.Page{Limit: defaultLimit}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit <= 0 {
			return page, fmt.Errorf("invalid limit value")
		}
		page.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("offset")); val != "" {
		offset, err := strconv.Atoi(val)
		if err != nil || offset < 0 {
			return page, fmt.Errorf("invalid offset value")
		}
		page.Offset = offset
	}
	return page, nil
}

func buildTitleFilters(query url.Values, defaultLimit int) (repository.TitleListFilters, error) {
	var filters repository.TitleListFilters

	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		filters.GenreSlug = &val
	}
	if val := strings.TrimSpace(query.Get("category")); val != "" {
		filters.CategorySlug = &val
	}
	if val := strings.TrimSpace(query.Get("name")); val != "" {
		filters.Name = &val
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	page, err := buildPage(query, defaultLimit)
	if err != nil {
		return filters, err
	}
	filters.Page = page
	return filters, nil
}

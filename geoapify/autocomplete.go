package geoapify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Place is an address suggestion.
type Place struct {
	Address string
	Location
}

// DefaultLimit is how many suggestions are requested when none is given.
const DefaultLimit = 5

// Autocomplete suggests places matching text. Requests are rate limited;
// a blank text returns no places without calling the service.
func (c *Client) Autocomplete(ctx context.Context, text string, limit int) ([]Place, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Place{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := c.do(ctx, "autocomplete", http.MethodGet, "/v1/geocode/autocomplete", url.Values{
		"text":   {text},
		"format": {"json"},
		"limit":  {strconv.Itoa(limit)},
	}, nil)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	places := []Place{}
	gjson.GetBytes(data, "results").ForEach(func(_, r gjson.Result) bool {
		lat, lon := r.Get("lat"), r.Get("lon")
		if lat.Type != gjson.Number || lon.Type != gjson.Number {
			return true
		}
		places = append(places, Place{
			Address:  r.Get("formatted").String(),
			Location: Location{Lat: lat.Float(), Lon: lon.Float()},
		})
		return true
	})
	return places, nil
}

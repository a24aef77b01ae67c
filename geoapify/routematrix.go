package geoapify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

type Location struct {
	Lat float64
	Lon float64
}

// Leg is the driving distance and time between a source and its target.
type Leg struct {
	Meters  float64
	Seconds float64
}

type (
	matrixWaypoint struct {
		Location [2]float64 `json:"location"` // lon, lat
	}

	matrixRequest struct {
		Mode    string           `json:"mode"`
		Sources []matrixWaypoint `json:"sources"`
		Targets []matrixWaypoint `json:"targets"`
	}
)

func waypoints(locations []Location) []matrixWaypoint {
	out := make([]matrixWaypoint, len(locations))
	for i, l := range locations {
		out[i] = matrixWaypoint{Location: [2]float64{l.Lon, l.Lat}}
	}
	return out
}

// RouteMatrix asks for the driving route matrix between sources and targets
// and returns the legs from sources[i] to targets[i].
func (c *Client) RouteMatrix(ctx context.Context, sources, targets []Location) ([]Leg, error) {
	if len(sources) != len(targets) {
		return nil, fmt.Errorf("geoapify: %d sources for %d targets", len(sources), len(targets))
	}
	if len(sources) == 0 {
		return []Leg{}, nil
	}

	body, err := json.Marshal(matrixRequest{Mode: "drive", Sources: waypoints(sources), Targets: waypoints(targets)})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, "routematrix", http.MethodPost, "/v1/routematrix", url.Values{}, body)
	if err != nil {
		return nil, err
	}
	return parseLegs(data, len(sources))
}

// parseLegs reads the diagonal of the matrix. Besides the documented
// sources_to_targets shape it accepts a flat results array of
// {distance, duration} objects.
func parseLegs(data []byte, n int) ([]Leg, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(data)

	var at func(i int) (distance, duration gjson.Result)
	switch matrix, results := doc.Get("sources_to_targets"), doc.Get("results"); {
	case matrix.IsArray():
		if rows := len(matrix.Array()); rows != n {
			return nil, fmt.Errorf("%w: %d rows for %d sources", ErrMalformedResponse, rows, n)
		}
		at = func(i int) (gjson.Result, gjson.Result) {
			cell := matrix.Get(fmt.Sprintf("%d.%d", i, i))
			return cell.Get("distance"), cell.Get("time")
		}
	case results.IsArray():
		if legs := len(results.Array()); legs != n {
			return nil, fmt.Errorf("%w: %d results for %d legs", ErrMalformedResponse, legs, n)
		}
		at = func(i int) (gjson.Result, gjson.Result) {
			leg := results.Get(fmt.Sprint(i))
			return leg.Get("distance"), leg.Get("duration")
		}
	default:
		return nil, fmt.Errorf("%w: no matrix in response", ErrMalformedResponse)
	}

	legs := make([]Leg, n)
	for i := range legs {
		distance, duration := at(i)
		if distance.Type != gjson.Number || duration.Type != gjson.Number {
			return nil, fmt.Errorf("%w: leg %d has no distance or duration", ErrMalformedResponse, i)
		}
		legs[i] = Leg{Meters: distance.Float(), Seconds: duration.Float()}
	}
	return legs, nil
}

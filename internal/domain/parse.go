package domain

import "encoding/json"

// rawFeature mirrors the catalog's GeoJSON feature shape.
type rawFeature struct {
	ID       string `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Mag     *float64 `json:"mag"`
		MagType string   `json:"magType"`
		Place   string   `json:"place"`
		Time    *int64   `json:"time"`
		Status  string   `json:"status"`
		Type    string   `json:"type"`
		Sig     *int     `json:"sig"`
		Tsunami *int     `json:"tsunami"`
		Alert   string   `json:"alert"`
		Felt    *int     `json:"felt"`
		CDI     *float64 `json:"cdi"`
		MMI     *float64 `json:"mmi"`
		URL     string   `json:"url"`
		Title   string   `json:"title"`
	} `json:"properties"`
}

func (f rawFeature) toEvent() QuakeEvent {
	ev := QuakeEvent{
		ID:           f.ID,
		Magnitude:    f.Properties.Mag,
		MagType:      f.Properties.MagType,
		Place:        f.Properties.Place,
		TimeMS:       f.Properties.Time,
		Status:       f.Properties.Status,
		EventType:    f.Properties.Type,
		Significance: f.Properties.Sig,
		Alert:        f.Properties.Alert,
		Felt:         f.Properties.Felt,
		CDI:          f.Properties.CDI,
		MMI:          f.Properties.MMI,
		URL:          f.Properties.URL,
		Title:        f.Properties.Title,
	}

	// GeoJSON coordinates are [longitude, latitude, depth_km].
	coords := f.Geometry.Coordinates
	if len(coords) > 0 {
		ev.Longitude = Ptr(coords[0])
	}
	if len(coords) > 1 {
		ev.Latitude = Ptr(coords[1])
	}
	if len(coords) > 2 {
		ev.DepthKM = Ptr(coords[2])
	}

	if f.Properties.Tsunami != nil && *f.Properties.Tsunami != 0 {
		ev.Tsunami = true
	}

	return ev
}

// ParseAPIResponse converts a raw catalog response body into an APIResult.
//
// Four shapes are handled: a FeatureCollection (one or more events), a
// single Feature (event-ID lookups return a structurally different
// object), a count object, and an empty body (no-content status). Any
// unrecognized or malformed payload degrades to an empty result rather
// than returning an error; the catalog is not trusted to be well-formed.
func ParseAPIResponse(raw []byte, queryType QueryType) APIResult {
	if len(raw) == 0 {
		return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
	}

	if queryType == QueryTypeCount {
		var payload struct {
			Count *int `json:"count"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
		}
		return APIResult{Kind: ResultCount, Count: payload.Count}
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
	}

	switch envelope.Type {
	case "Feature":
		var feature rawFeature
		if err := json.Unmarshal(raw, &feature); err != nil {
			return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
		}
		return APIResult{
			Kind:           ResultSingleEvent,
			TotalAvailable: Ptr(1),
			Returned:       Ptr(1),
			Events:         []QuakeEvent{feature.toEvent()},
		}

	case "FeatureCollection":
		var payload struct {
			Metadata struct {
				Count     *int   `json:"count"`
				URL       string `json:"url"`
				Generated *int64 `json:"generated"`
			} `json:"metadata"`
			Features []rawFeature `json:"features"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
		}

		total := intValue(payload.Metadata.Count)
		if total == 0 || len(payload.Features) == 0 {
			return APIResult{
				Kind:           ResultEmpty,
				TotalAvailable: Ptr(total),
				Returned:       Ptr(0),
				QueryURL:       payload.Metadata.URL,
				GeneratedMS:    payload.Metadata.Generated,
			}
		}

		events := make([]QuakeEvent, 0, len(payload.Features))
		for _, f := range payload.Features {
			events = append(events, f.toEvent())
		}
		return APIResult{
			Kind:           ResultCollection,
			TotalAvailable: Ptr(total),
			Returned:       Ptr(len(events)),
			Events:         events,
			QueryURL:       payload.Metadata.URL,
			GeneratedMS:    payload.Metadata.Generated,
		}
	}

	// Unrecognized shape.
	return APIResult{Kind: ResultEmpty, TotalAvailable: Ptr(0), Returned: Ptr(0)}
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/schollz/progressbar/v3"
)

// metersToYards converts the distance bounds for the tile endpoint, which
// takes its distance filter in yards.
const metersToYards = 1.094

// SegmentSummary is a segment stub discovered on a map tile.
type SegmentSummary struct {
	ID   int64
	Name string
}

// collectStats reports how the tile sweep went.
type collectStats struct {
	TilesFetched int
	TilesFailed  int
}

// segmentsFromTile queries one map tile and returns the segment stubs it
// carries. The endpoint answers either JSON or a Mapbox Vector Tile
// depending on rollout, so both are handled.
func (c *apiClient) segmentsFromTile(ctx context.Context, tile TileCoordinate, regionID int64, crit FilterCriteria) ([]SegmentSummary, error) {
	params := url.Values{}
	params.Set("intent", "popular")
	params.Set("elevation_filter", "all")
	params.Set("surface_types", "0")
	params.Set("sport_types", "Ride")
	params.Set("distance_max", strconv.Itoa(int(crit.MaxDistanceM*metersToYards)))
	params.Set("distance_min", strconv.Itoa(int(crit.MinDistanceM*metersToYards)))

	reqURL := fmt.Sprintf("%s/tiles/segments/%d/%d/%d/%d?%s",
		c.baseURL, regionID, tile.Zoom, tile.X, tile.Y, params.Encode())

	b, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return decodeTileSegments(b)
}

// tileSegmentsResponse is the JSON shape of the tile endpoint.
type tileSegmentsResponse struct {
	Segments []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"segments"`
}

// decodeTileSegments parses a tile response, trying JSON first and falling
// back to the vector-tile format.
func decodeTileSegments(b []byte) ([]SegmentSummary, error) {
	var jr tileSegmentsResponse
	if err := json.Unmarshal(b, &jr); err == nil {
		out := make([]SegmentSummary, 0, len(jr.Segments))
		for _, s := range jr.Segments {
			out = append(out, SegmentSummary{ID: s.ID, Name: s.Name})
		}
		return out, nil
	}

	layers, err := mvt.Unmarshal(b)
	if err != nil {
		layers, err = mvt.UnmarshalGzipped(b)
	}
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}

	var out []SegmentSummary
	for _, layer := range layers {
		for _, f := range layer.Features {
			id, ok := segmentIDProperty(f.Properties)
			if !ok {
				continue
			}
			name, _ := f.Properties["name"].(string)
			out = append(out, SegmentSummary{ID: id, Name: name})
		}
	}
	return out, nil
}

// segmentIDProperty extracts a segment id from vector-tile feature
// properties. The key has varied across deployments.
func segmentIDProperty(props geojson.Properties) (int64, bool) {
	for _, key := range []string{"segmentId", "id", "segment_id"} {
		v, ok := props[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int64(t), true
		case int64:
			return t, true
		case uint64:
			return int64(t), true
		case int:
			return int64(t), true
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// collectSegments sweeps the tiles and merges their segment stubs into one
// de-duplicated, first-seen-ordered list. An auth failure aborts the sweep;
// any other per-tile failure is logged and the remaining tiles still run.
func collectSegments(ctx context.Context, client *apiClient, tiles []TileCoordinate, regionID int64, crit FilterCriteria, log *logger) ([]SegmentSummary, collectStats, error) {
	var (
		stats collectStats
		out   []SegmentSummary
		seen  = make(map[int64]bool)
	)

	bar := progressbar.Default(int64(len(tiles)), "Fetching tiles")
	defer func() { _ = bar.Finish() }()

	for _, tile := range tiles {
		stubs, err := client.segmentsFromTile(ctx, tile, regionID, crit)
		if err != nil {
			if isAuthError(err) {
				return nil, stats, errAuthRequired
			}
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			log.warnf("tile (%d,%d) failed: %v", tile.X, tile.Y, err)
			stats.TilesFailed++
			_ = bar.Add(1)
			continue
		}
		stats.TilesFetched++
		for _, s := range stubs {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
		_ = bar.Add(1)
	}
	return out, stats, nil
}
